// internal/server/handlers/status.go

package handlers

import (
	"errors"
	"net/http"

	"locale/internal/domain/event"
	"locale/internal/domain/identity"
)

// StatusInfo describes the running configuration
type StatusInfo struct {
	Provider  string
	Mode      event.Mode
	Push      string
	Connected func() bool
	ConfigErr error
	Sessions  func() int
}

type statusResponse struct {
	Ready    bool            `json:"ready"`
	Provider string          `json:"provider"`
	Mode     event.Mode      `json:"mode"`
	Push     string          `json:"push"`
	PushConn bool            `json:"push_connected"`
	Sessions int             `json:"sessions"`
	User     identity.User   `json:"user"`
	Error    string          `json:"error,omitempty"`
	Kind     event.ErrorKind `json:"kind,omitempty"`
}

// StatusHandler reports whether the service can run searches. A missing API
// key is reported here with 503 rather than stopping the process.
func StatusHandler(info StatusInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Ready:    info.ConfigErr == nil,
			Provider: info.Provider,
			Mode:     info.Mode,
			Push:     info.Push,
			PushConn: info.Connected == nil || info.Connected(),
			User:     UserFromContext(r.Context()),
		}
		if info.Sessions != nil {
			resp.Sessions = info.Sessions()
		}

		if info.ConfigErr != nil {
			msg := info.ConfigErr.Error()
			var e *event.Error
			if errors.As(info.ConfigErr, &e) && e.Err != nil {
				msg = e.Err.Error()
			}
			resp.Error = "Action Required: " + msg
			resp.Kind = event.KindOf(info.ConfigErr)
			respondWithJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		respondWithJSON(w, http.StatusOK, resp)
	}
}
