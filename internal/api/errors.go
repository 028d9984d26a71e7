package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/aegis/internal/apierr"
)

// statusFor maps a closed error kind to an HTTP status code (spec §7).
func statusFor(kind apierr.Kind) int {
	switch kind {
	case apierr.InvalidBrief, apierr.InvalidPath, apierr.InvalidParameter:
		return http.StatusBadRequest
	case apierr.NotFound, apierr.WorkspaceMissing:
		return http.StatusNotFound
	case apierr.SlotBusy, apierr.NotCancellable, apierr.AlreadyCancelled, apierr.AlreadyExists:
		return http.StatusConflict
	case apierr.NoSlot, apierr.CapacityExceeded:
		return http.StatusServiceUnavailable
	case apierr.FileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apierr.IoFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondAPIError writes the right status and error kind for any error
// returned by the mission/swarm layers. Errors that aren't an *apierr.Error
// are treated as internal failures without leaking their detail.
func (s *Server) respondAPIError(w http.ResponseWriter, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		respondError(w, statusFor(ae.Kind), string(ae.Kind), ae.Message)
		return
	}
	respondError(w, http.StatusInternalServerError, "Internal", "internal error")
}
