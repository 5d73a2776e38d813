// internal/server/handlers/chat.go

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"locale/internal/service/assistant"
)

// ChatHandler handles Architect chat requests
type ChatHandler struct {
	store   SessionStore
	service *assistant.Service
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(store SessionStore, service *assistant.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		store:   store,
		service: service,
		logger:  logger,
	}
}

type chatRequest struct {
	Content string `json:"content"`
}

// SendMessage forwards one user message and returns the reply
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	reply, err := h.service.Chat(r.Context(), st.ID(), req.Content)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reply)
}

// GetHistory returns the session's chat turns
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"history": st.History(0),
	})
}
