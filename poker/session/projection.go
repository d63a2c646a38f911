package session

import "github.com/pointdeck/pointdeck/poker/protocol"

// maskedPoints is the sentinel substituted for another user's vote
// while voting is still open. Clients render it as "has voted".
const maskedPoints = "-1"

// projectFor derives the view of a snapshot that one viewer may see.
// Kicked users are removed entirely. While any non-spectator has not
// voted, every other user's committed vote is replaced with the
// sentinel so real values stay hidden until the round closes; the
// viewer always sees their own vote.
func projectFor(viewerID string, state protocol.SessionState) protocol.SessionState {
	votingOpen := false
	for _, user := range state.Users {
		if user.Kicked {
			continue
		}
		if !user.IsSpectator && user.Points == nil {
			votingOpen = true
			break
		}
	}

	view := protocol.NewSessionState()
	view.Admin = state.Admin
	for id, user := range state.Users {
		if user.Kicked {
			continue
		}
		if votingOpen && id != viewerID && user.Points != nil {
			masked := maskedPoints
			user.Points = &masked
		}
		view.Users[id] = user
	}
	return view
}
