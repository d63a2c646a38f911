package session

import (
	"testing"
	"time"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

// recvSnapshot receives one snapshot with a timeout so tests never hang.
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case snap := <-ch:
		t.Fatalf("expected no snapshot within %v, but got version %d", within, snap.Version)
	case <-time.After(within):
	}
}

func stateWithUsers(ids ...string) protocol.SessionState {
	state := protocol.NewSessionState()
	for _, id := range ids {
		state.Users[id] = protocol.UserState{}
	}
	return state
}

func TestWatch_SubscribeDeliversCurrentImmediately(t *testing.T) {
	w := newStateWatch(stateWithUsers("1"))

	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	snap := recvSnapshot(t, sub.ch, time.Second)
	if snap.Version != 0 {
		t.Errorf("Expected version 0, got %d", snap.Version)
	}
	if len(snap.State.Users) != 1 {
		t.Errorf("Expected 1 user in initial snapshot, got %d", len(snap.State.Users))
	}
}

func TestWatch_SlowSubscriberSkipsToLatest(t *testing.T) {
	w := newStateWatch(protocol.NewSessionState())
	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	// Drain the initial snapshot, then publish three versions without
	// reading in between.
	recvSnapshot(t, sub.ch, time.Second)
	w.Publish(stateWithUsers("1"))
	w.Publish(stateWithUsers("1", "2"))
	w.Publish(stateWithUsers("1", "2", "3"))

	snap := recvSnapshot(t, sub.ch, time.Second)
	if snap.Version != 3 {
		t.Errorf("Expected latest version 3, got %d", snap.Version)
	}
	if len(snap.State.Users) != 3 {
		t.Errorf("Expected coalesced snapshot with 3 users, got %d", len(snap.State.Users))
	}

	// Nothing stale left behind.
	recvNoSnapshot(t, sub.ch, 50*time.Millisecond)
}

func TestWatch_VersionsAreOrderedPerSubscriber(t *testing.T) {
	w := newStateWatch(protocol.NewSessionState())
	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	last := recvSnapshot(t, sub.ch, time.Second).Version
	for i := 0; i < 20; i++ {
		w.Publish(stateWithUsers("1"))
		snap := recvSnapshot(t, sub.ch, time.Second)
		if snap.Version <= last {
			t.Fatalf("Version went backwards: %d after %d", snap.Version, last)
		}
		last = snap.Version
	}
}

func TestWatch_UnsubscribeClosesChannel(t *testing.T) {
	w := newStateWatch(protocol.NewSessionState())
	sub := w.Subscribe()
	recvSnapshot(t, sub.ch, time.Second)

	w.Unsubscribe(sub)
	w.Publish(stateWithUsers("1"))

	// The channel is closed, not fed: a blocked reader wakes with no
	// snapshot instead of waiting forever.
	select {
	case snap, ok := <-sub.ch:
		if ok {
			t.Fatalf("Expected closed channel, got version %d", snap.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected unsubscribe to close the channel")
	}

	// A second unsubscribe is a no-op.
	w.Unsubscribe(sub)
}

func TestWatch_CurrentTracksLatest(t *testing.T) {
	w := newStateWatch(protocol.NewSessionState())
	w.Publish(stateWithUsers("1"))
	w.Publish(stateWithUsers("1", "2"))

	current := w.Current()
	if current.Version != 2 {
		t.Errorf("Expected current version 2, got %d", current.Version)
	}
	if len(current.State.Users) != 2 {
		t.Errorf("Expected 2 users in current state, got %d", len(current.State.Users))
	}
}
