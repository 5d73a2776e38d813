// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/domain/session"
	"locale/internal/service/assistant"
)

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Error string          `json:"error"`
	Kind  event.ErrorKind `json:"kind,omitempty"`
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, kind event.ErrorKind) {
	respondWithJSON(w, code, errorResponse{Error: message, Kind: kind})
}

// respondWithDomainError maps err to a status code and kind. Server-side
// failures are logged.
func respondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", code), zap.Error(err))
	}
	respondWithError(w, code, err.Error(), event.KindOf(err))
}

// StatusFor returns the HTTP status for a service error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, event.ErrTooManyInterests),
		errors.Is(err, event.ErrInvalidDateRange),
		errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrMessageTooLong):
		return http.StatusBadRequest
	}

	switch event.KindOf(err) {
	case event.KindConfigMissing:
		return http.StatusServiceUnavailable
	case event.KindMissingInterests:
		return http.StatusBadRequest
	case event.KindRetrievalFailed:
		return http.StatusBadGateway
	case event.KindTimeout:
		return http.StatusGatewayTimeout
	case event.KindMalformedResponse, event.KindInvalidEventGeometry:
		return http.StatusUnprocessableEntity
	case event.KindSuperseded:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
