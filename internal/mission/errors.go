package mission

import (
	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/types"
)

func errInvalidBrief(reason string) *apierr.Error {
	return apierr.New(apierr.InvalidBrief, reason)
}

func errNotFound(missionID string) *apierr.Error {
	return apierr.New(apierr.NotFound, "unknown mission: "+missionID)
}

// errAlreadyTerminalForCancel reports why a mission can no longer be
// cancelled: it already reached a terminal status.
func errAlreadyTerminalForCancel(status types.MissionStatus) *apierr.Error {
	if status == types.MissionCancelled {
		return apierr.New(apierr.AlreadyCancelled, "mission is already cancelled")
	}
	return apierr.New(apierr.NotCancellable, "mission has already reached a terminal status: "+string(status))
}
