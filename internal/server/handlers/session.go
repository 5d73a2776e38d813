// internal/server/handlers/session.go

package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/domain/identity"
	"locale/internal/domain/session"
)

// SessionStore is the session lifecycle used by the handlers
type SessionStore interface {
	Create(user identity.User) *session.State
	Get(id string) (*session.State, error)
	Delete(id string) error
}

// SessionHandler handles session and criteria requests
type SessionHandler struct {
	store        SessionStore
	authRequired bool
	logger       *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store SessionStore, authRequired bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		store:        store,
		authRequired: authRequired,
		logger:       logger,
	}
}

type interestRequest struct {
	Interest string `json:"interest"`
}

// CreateSession opens a new session for the caller
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if h.authRequired && !user.Authenticated {
		respondWithError(w, http.StatusUnauthorized, "Sign in to start planning", "")
		return
	}

	st := h.store.Create(user)
	respondWithJSON(w, http.StatusCreated, st.Snapshot())
}

// GetSession returns the full session state
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, st.Snapshot())
}

// DeleteSession ends a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	if err := h.store.Delete(st.ID()); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCriteria replaces interests, location and date range
func (h *SessionHandler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var c event.SearchCriteria
	if err := decodeJSON(w, r, &c, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid criteria: "+err.Error(), "")
		return
	}
	if err := st.SetCriteria(c); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st.Criteria())
}

// AddInterest appends one interest tag
func (h *SessionHandler) AddInterest(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var req interestRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	added, err := st.AddInterest(req.Interest)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, st.Criteria())
}

// RemoveInterest drops one interest tag
func (h *SessionHandler) RemoveInterest(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	interest := chi.URLParam(r, "interest")
	if unescaped, err := url.PathUnescape(interest); err == nil {
		interest = unescaped
	}

	if !st.RemoveInterest(interest) {
		respondWithError(w, http.StatusNotFound, "Interest not found", "")
		return
	}
	respondWithJSON(w, http.StatusOK, st.Criteria())
}

// ResetSession clears criteria, results and chat history
func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	st.Reset()
	respondWithJSON(w, http.StatusOK, st.Snapshot())
}

// loadSession resolves the {id} URL parameter. Sessions opened by a signed-in
// user are hidden from everyone else.
func loadSession(w http.ResponseWriter, r *http.Request, store SessionStore) (*session.State, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing session ID", "")
		return nil, false
	}

	st, err := store.Get(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Session not found", "")
		return nil, false
	}

	owner := st.User()
	if owner.Authenticated && owner.ID != UserFromContext(r.Context()).ID {
		respondWithError(w, http.StatusNotFound, "Session not found", "")
		return nil, false
	}
	return st, true
}
