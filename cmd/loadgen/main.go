// Command loadgen drives a PointDeck server with synthetic users. It
// joins a number of WebSocket clients to one session, gives each a
// name, submits votes, and reports the events each client observed.
// Useful for soak-testing capacity limits and broadcast fan-out.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

var (
	serverURL = flag.String("url", "ws://127.0.0.1:8080", "WebSocket base URL of the server")
	sessionID = flag.String("session", "loadgen", "session to join")
	users     = flag.Int("users", 8, "number of concurrent synthetic users")
	listen    = flag.Duration("listen", 5*time.Second, "how long each user listens for events after voting")
	spectate  = flag.Bool("spectate", false, "make the last user a spectator instead of a voter")
)

// deck is the set of votes the synthetic users cycle through.
var deck = []string{"1", "2", "3", "5", "8", "13"}

type clientStats struct {
	states     int
	keepalives int
	errors     int
	lastError  string
}

func main() {
	flag.Parse()

	endpoint := fmt.Sprintf("%s/ws/%s", *serverURL, *sessionID)
	log.Printf("joining %d users to %s", *users, endpoint)

	var wg sync.WaitGroup
	results := make([]clientStats, *users)
	failures := make([]error, *users)

	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			asSpectator := *spectate && idx == *users-1
			stats, err := runUser(endpoint, idx, asSpectator)
			results[idx] = stats
			failures[idx] = err
		}(i)
	}
	wg.Wait()

	var total clientStats
	failed := 0
	for i, stats := range results {
		if failures[i] != nil {
			failed++
			log.Printf("user %d failed: %v", i, failures[i])
			continue
		}
		total.states += stats.states
		total.keepalives += stats.keepalives
		total.errors += stats.errors
		if stats.lastError != "" {
			log.Printf("user %d saw error event: %s", i, stats.lastError)
		}
	}

	log.Printf("done: %d users, %d failed, %d state events, %d keepalives, %d error events",
		*users, failed, total.states, total.keepalives, total.errors)
	if failed > 0 {
		os.Exit(1)
	}
}

// runUser drives one synthetic client: connect, pick a name, vote (or
// spectate), then listen for events until the listen window closes and
// disconnect cleanly.
func runUser(endpoint string, idx int, asSpectator bool) (clientStats, error) {
	var stats clientStats

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return stats, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	send := func(msg protocol.ClientMessage) error {
		data, err := protocol.EncodeClientMessage(msg)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := send(protocol.NameChange{Name: fmt.Sprintf("loadgen-%d", idx)}); err != nil {
		return stats, fmt.Errorf("set name: %w", err)
	}
	if asSpectator {
		if err := send(protocol.SetSpectator{Spectator: true}); err != nil {
			return stats, fmt.Errorf("set spectator: %w", err)
		}
	} else {
		if err := send(protocol.SetPoints{Points: deck[idx%len(deck)]}); err != nil {
			return stats, fmt.Errorf("vote: %w", err)
		}
	}

	deadline := time.Now().Add(*listen)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			return stats, fmt.Errorf("decode event: %w", err)
		}
		switch m := msg.(type) {
		case protocol.StateEvent:
			stats.states++
		case protocol.KeepAliveEvent:
			stats.keepalives++
		case protocol.ErrorEvent:
			stats.errors++
			stats.lastError = m.Message
		}
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return stats, nil
}
