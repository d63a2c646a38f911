package session

import (
	"sync"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

// Snapshot is one immutable version of a session's state, produced by
// exactly one mutation.
type Snapshot struct {
	Version uint64
	State   protocol.SessionState
}

// stateWatch holds the latest snapshot and fans it out to subscribers
// with latest-wins semantics: each subscriber has a coalescing buffer
// of one, so a slow subscriber skips intermediate versions but always
// observes snapshots in commit order and never blocks a publisher.
type stateWatch struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[*subscription]struct{}
}

type subscription struct {
	ch chan Snapshot
}

func newStateWatch(initial protocol.SessionState) *stateWatch {
	return &stateWatch{
		current: Snapshot{State: initial},
		subs:    make(map[*subscription]struct{}),
	}
}

// Current returns the latest published snapshot.
func (w *stateWatch) Current() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Publish replaces the current snapshot and wakes every subscriber.
func (w *stateWatch) Publish(state protocol.SessionState) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = Snapshot{Version: w.current.Version + 1, State: state}
	for sub := range w.subs {
		sub.deliver(w.current)
	}
	return w.current
}

// Subscribe registers a new subscriber. The current snapshot is
// delivered immediately so a fresh subscriber never waits for the next
// mutation to see state.
func (w *stateWatch) Subscribe() *subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	sub := &subscription{ch: make(chan Snapshot, 1)}
	sub.ch <- w.current
	w.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe deregisters a subscriber and closes its channel, waking
// a reader blocked on it. Closing under the lock is safe because
// deliver only ever targets registered subscriptions. Idempotent.
func (w *stateWatch) Unsubscribe(sub *subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[sub]; !ok {
		return
	}
	delete(w.subs, sub)
	close(sub.ch)
}

// deliver is called with the watch lock held, so publishes are
// serialized. The subscriber only ever receives, which means the
// buffer slot freed by the drain below cannot be refilled by anyone
// else before the final send.
func (s *subscription) deliver(snap Snapshot) {
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
}
