package session

import (
	"testing"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

func ptr(s string) *string { return &s }

func TestProjectFor_MasksOthersWhileVotingOpen(t *testing.T) {
	state := protocol.NewSessionState()
	state.Users["1"] = protocol.UserState{Name: ptr("Alice"), Points: ptr("5")}
	state.Users["2"] = protocol.UserState{Name: ptr("Bob")} // not voted yet
	state.Users["3"] = protocol.UserState{Name: ptr("Carol"), Points: ptr("8")}

	view := projectFor("1", state)

	if got := view.Users["1"].Points; got == nil || *got != "5" {
		t.Errorf("Viewer's own points should be visible, got %v", got)
	}
	if got := view.Users["3"].Points; got == nil || *got != maskedPoints {
		t.Errorf("Another user's points should be masked, got %v", got)
	}
	if got := view.Users["2"].Points; got != nil {
		t.Errorf("An unset vote must stay unset, got %q", *got)
	}
}

func TestProjectFor_RevealsOnceAllVotersCommitted(t *testing.T) {
	state := protocol.NewSessionState()
	state.Users["1"] = protocol.UserState{Points: ptr("5")}
	state.Users["2"] = protocol.UserState{Points: ptr("8")}
	state.Users["3"] = protocol.UserState{IsSpectator: true} // never votes

	for _, viewer := range []string{"1", "2", "3"} {
		view := projectFor(viewer, state)
		if got := view.Users["1"].Points; got == nil || *got != "5" {
			t.Errorf("Viewer %s: expected real points 5 for user 1, got %v", viewer, got)
		}
		if got := view.Users["2"].Points; got == nil || *got != "8" {
			t.Errorf("Viewer %s: expected real points 8 for user 2, got %v", viewer, got)
		}
	}
}

func TestProjectFor_KickedUsersDisappear(t *testing.T) {
	state := protocol.NewSessionState()
	state.Users["1"] = protocol.UserState{Name: ptr("Alice")}
	state.Users["2"] = protocol.UserState{Name: ptr("Mallory"), Kicked: true}

	view := projectFor("1", state)
	if _, ok := view.Users["2"]; ok {
		t.Error("Kicked user must not appear in any projection")
	}
	if len(view.Users) != 1 {
		t.Errorf("Expected 1 visible user, got %d", len(view.Users))
	}
}

func TestProjectFor_KickedVotersDoNotHoldVotingOpen(t *testing.T) {
	state := protocol.NewSessionState()
	state.Users["1"] = protocol.UserState{Points: ptr("3")}
	state.Users["2"] = protocol.UserState{Kicked: true} // unvoted but kicked

	view := projectFor("2", state)
	if got := view.Users["1"].Points; got == nil || *got != "3" {
		t.Errorf("Expected real points once only kicked users are unvoted, got %v", got)
	}
}

func TestProjectFor_OutsideViewerSeesOnlyMasks(t *testing.T) {
	state := protocol.NewSessionState()
	state.Users["1"] = protocol.UserState{Points: ptr("5")}
	state.Users["2"] = protocol.UserState{}

	// The empty viewer id matches no user, so every committed vote is
	// masked while the round is open.
	view := projectFor("", state)
	if got := view.Users["1"].Points; got == nil || *got != maskedPoints {
		t.Errorf("Outside view must mask committed votes, got %v", got)
	}
}
