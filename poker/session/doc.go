// Package session implements the synchronization engine at the heart
// of PointDeck: the authoritative state of one estimation session, the
// serialization of concurrent mutations from many connections, the
// per-viewer masked projections, and the fan-out of change
// notifications to every subscriber.
//
// The session package implements:
//   - Session: one named collaboration context with its own user set,
//     admin seat, and capacity limit
//   - Directory: the process-wide registry that resolves or lazily
//     creates sessions and enforces the global session limit
//   - The command table applied to client messages (rename with
//     reconnection takeover, voting, vote reset, admin claim, kicks,
//     spectator toggling)
//   - Per-viewer projections that hide votes until a round closes
//
// Concurrency:
//
// State is an immutable value replaced wholesale under a single mutex
// that is held only across the synchronous read-clone-apply-publish
// sequence, never across I/O. New snapshots fan out through a
// latest-wins watch: each subscriber owns a coalescing buffer of one,
// so mutations are totally ordered, every subscriber observes them in
// commit order, and a slow subscriber skips intermediate versions
// instead of blocking publishers.
//
// Each joined connection runs three tasks: a projection task
// forwarding masked snapshots, a keepalive ticker, and the command
// loop. Teardown is convergent rather than cancelled: the background
// tasks stop on their own when their send fails or when they observe
// their user entry gone or kicked, and Join closes the projection's
// subscription after the loop ends so it never parks on a session
// that will not publish again.
//
// Lifecycle:
//
// Directory entries do not own sessions; active joins do. Resolve
// takes an owning reference and Release drops it, and the last drop
// deregisters the session after double-checking that a new session
// under the same identifier has not replaced the entry in between.
//
// Usage:
//
//	directory := session.NewDirectory(logger, 8, 16)
//
//	sess, err := directory.Resolve("demo")
//	if err != nil {
//		// directory at capacity
//	}
//	defer sess.Release()
//
//	err = sess.Join(ctx, conn) // runs until the connection ends
package session
