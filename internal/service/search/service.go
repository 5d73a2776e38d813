// internal/service/search/service.go

// Package search runs one search end to end: prompt, grounded retrieval,
// normalization, rendering and the commit into session state.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/domain/session"
	"locale/internal/metrics"
	"locale/internal/service/normalize"
	"locale/internal/service/prompt"
	"locale/internal/service/render"
	"locale/internal/service/retrieval"
)

// Retriever is the grounded retrieval client
type Retriever interface {
	Retrieve(ctx context.Context, prompt string, opts retrieval.Options) (event.RawResult, error)
	Mode() event.Mode
}

// Sessions looks up live sessions
type Sessions interface {
	Get(id string) (*session.State, error)
}

// Publisher delivers lifecycle notifications
type Publisher interface {
	Publish(n session.Notification) error
}

// Options apply to one search
type Options = retrieval.Options

// Outcome is a committed search
type Outcome struct {
	Token  uint64       `json:"token"`
	Result event.Result `json:"result"`
	View   render.View  `json:"view"`
}

// Service orchestrates searches
type Service struct {
	sessions  Sessions
	retriever Retriever
	configErr error
	renderer  *render.Renderer
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService creates a search service. When configErr is non-nil, or
// retriever is nil, every search fails with a ConfigMissing error.
func NewService(
	sessions Sessions,
	retriever Retriever,
	configErr error,
	renderer *render.Renderer,
	publisher Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if configErr == nil && retriever == nil {
		configErr = errors.New("no retrieval client configured")
	}
	return &Service{
		sessions:  sessions,
		retriever: retriever,
		configErr: configErr,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger.Named("search"),
		metrics:   m,
	}
}

// Search runs a search for the session's current criteria. A newer search on
// the same session cancels this one, which then fails with Superseded. On any
// failure the previously cached events are kept.
func (s *Service) Search(ctx context.Context, sessionID string, opts Options) (*Outcome, error) {
	st, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if s.configErr != nil {
		s.metrics.Searches.WithLabelValues(string(event.KindConfigMissing)).Inc()
		return nil, event.NewError(event.KindConfigMissing, "search", s.configErr)
	}

	criteria := st.Criteria()
	if len(criteria.Interests) == 0 {
		s.metrics.Searches.WithLabelValues(string(event.KindMissingInterests)).Inc()
		return nil, event.NewError(event.KindMissingInterests, "search", errors.New("add interests first"))
	}

	token, searchCtx := st.BeginSearch(ctx)
	mode := s.retriever.Mode()
	log := s.logger.With(
		zap.String("session_id", sessionID),
		zap.Uint64("token", token),
		zap.Strings("interests", criteria.Interests),
		zap.String("location", criteria.Location),
		zap.String("date_range", criteria.DateRange.String()),
	)
	log.Info("Search started", zap.String("mode", string(mode)), zap.Bool("strict", opts.Strict))
	s.publish(session.Notification{Type: session.SearchStarted, SessionID: sessionID, Token: token, Mode: mode})

	raw, err := s.retriever.Retrieve(searchCtx, prompt.ForMode(mode, criteria), opts)
	if err != nil {
		return nil, s.fail(st, token, err, log)
	}

	result, err := normalize.Normalize(raw)
	if err != nil {
		return nil, s.fail(st, token, err, log)
	}

	if !st.CompleteSearch(token, result) {
		return nil, s.superseded(sessionID, token, log)
	}

	view := s.renderer.RenderResult(result)

	s.metrics.Searches.WithLabelValues("ok").Inc()
	if mode == event.ModeStructured {
		s.metrics.EventsReturned.Observe(float64(len(result.Events)))
	}
	log.Info("Search completed",
		zap.Int("events", len(result.Events)),
		zap.Int("skipped", len(view.Skipped)),
	)
	s.publish(session.Notification{
		Type:      session.SearchCompleted,
		SessionID: sessionID,
		Token:     token,
		Mode:      mode,
		Events:    len(result.Events),
		Skipped:   len(view.Skipped),
	})

	return &Outcome{Token: token, Result: result, View: view}, nil
}

// Current returns the session's cached result, the token of the search that
// produced it, and its rendering. It returns a nil Outcome when no search has
// completed yet.
func (s *Service) Current(sessionID string) (*Outcome, error) {
	st, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	res, token := st.Committed()
	if res == nil {
		return nil, nil
	}
	return &Outcome{
		Token:  token,
		Result: *res,
		View:   s.renderer.RenderResult(*res),
	}, nil
}

// Renderer exposes the renderer used for exports
func (s *Service) Renderer() *render.Renderer {
	return s.renderer
}

// ConfigError returns the configuration problem blocking searches, if any
func (s *Service) ConfigError() error {
	return s.configErr
}

func (s *Service) fail(st *session.State, token uint64, err error, log *zap.Logger) error {
	if !st.FailSearch(token, err) {
		return s.superseded(st.ID(), token, log)
	}

	kind := event.KindOf(err)
	s.metrics.Searches.WithLabelValues(string(kind)).Inc()
	log.Warn("Search failed", zap.String("kind", string(kind)), zap.Error(err))
	s.publish(session.Notification{
		Type:      session.SearchFailed,
		SessionID: st.ID(),
		Token:     token,
		Kind:      kind,
		Error:     err.Error(),
	})
	return err
}

func (s *Service) superseded(sessionID string, token uint64, log *zap.Logger) error {
	s.metrics.StaleCompletions.Inc()
	s.metrics.Searches.WithLabelValues(string(event.KindSuperseded)).Inc()
	log.Info("Discarding stale search result")
	return event.NewError(event.KindSuperseded, "search",
		fmt.Errorf("request %d was replaced by a newer search", token))
}

func (s *Service) publish(n session.Notification) {
	if s.publisher == nil {
		return
	}
	n.Timestamp = time.Now().UTC()
	if err := s.publisher.Publish(n); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("type", string(n.Type)),
			zap.String("session_id", n.SessionID),
			zap.Error(err),
		)
	}
}
