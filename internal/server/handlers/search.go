// internal/server/handlers/search.go

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/service/search"
)

// SearchHandler handles search and event export requests
type SearchHandler struct {
	store   SessionStore
	service *search.Service
	logger  *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(store SessionStore, service *search.Service, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		store:   store,
		service: service,
		logger:  logger,
	}
}

type searchRequest struct {
	Strict bool `json:"strict"`
}

// eventsResponse is the cached search state of a session
type eventsResponse struct {
	SearchRequested bool            `json:"search_requested"`
	Searching       bool            `json:"searching"`
	LastError       string          `json:"last_error,omitempty"`
	LastErrorKind   event.ErrorKind `json:"last_error_kind,omitempty"`
	*search.Outcome
}

// Search runs a search for the session's current criteria and blocks until
// it completes or fails
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var req searchRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if strict, err := strconv.ParseBool(r.URL.Query().Get("strict")); err == nil {
		req.Strict = req.Strict || strict
	}

	outcome, err := h.service.Search(r.Context(), st.ID(), search.Options{Strict: req.Strict})
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// GetEvents returns the cached events and their rendering
func (h *SearchHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	outcome, err := h.service.Current(st.ID())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	snap := st.Snapshot()
	respondWithJSON(w, http.StatusOK, eventsResponse{
		SearchRequested: snap.SearchRequested,
		Searching:       snap.Searching,
		LastError:       snap.LastError,
		LastErrorKind:   snap.LastErrorKind,
		Outcome:         outcome,
	})
}

// GetGeoJSON exports the cached events as a GeoJSON FeatureCollection
func (h *SearchHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var events []event.EventRecord
	if res := st.Result(); res != nil {
		events = res.Events
	}

	body, err := h.service.Renderer().FeatureCollection(events).MarshalJSON()
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// GetCalendar exports the cached events as an iCalendar file
func (h *SearchHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	st, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var events []event.EventRecord
	if res := st.Result(); res != nil {
		events = res.Events
	}

	body := h.service.Renderer().Calendar(events, st.Criteria().DateRange, time.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="locale-events.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
