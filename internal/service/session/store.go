// internal/service/session/store.go

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"locale/internal/domain/identity"
	"locale/internal/domain/session"
	"locale/internal/metrics"
)

// StoreConfig contains configuration for the session store
type StoreConfig struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

// Store keeps interactive sessions in memory. A session expires after
// IdleTimeout without access; expiry and deletion both close it, cancelling
// any retrieval in flight.
type Store struct {
	items   *cache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewStore creates a new session store
func NewStore(cfg StoreConfig, logger *zap.Logger, m *metrics.Metrics) *Store {
	s := &Store{
		items:   cache.New(cfg.IdleTimeout, cfg.CleanupInterval),
		logger:  logger.Named("sessions"),
		metrics: m,
	}

	s.items.OnEvicted(func(id string, v interface{}) {
		if st, ok := v.(*session.State); ok {
			st.Close()
		}
		s.metrics.ActiveSessions.Dec()
		s.logger.Debug("Session closed", zap.String("session_id", id))
	})

	return s
}

// Create opens a session for user
func (s *Store) Create(user identity.User) *session.State {
	id := uuid.New().String()
	st := session.NewState(id, user)

	s.items.Set(id, st, cache.DefaultExpiration)
	s.metrics.ActiveSessions.Inc()
	s.logger.Info("Session created",
		zap.String("session_id", id),
		zap.String("user", user.ID),
		zap.Bool("authenticated", user.Authenticated),
	)
	return st
}

// Get returns the session and extends its lifetime
func (s *Store) Get(id string) (*session.State, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, session.ErrNotFound
	}
	st := v.(*session.State)

	// Replace fails if the janitor removed the item in between
	if err := s.items.Replace(id, st, cache.DefaultExpiration); err != nil {
		return nil, session.ErrNotFound
	}
	st.Touch()
	return st, nil
}

// Delete ends a session
func (s *Store) Delete(id string) error {
	if _, ok := s.items.Get(id); !ok {
		return session.ErrNotFound
	}
	s.items.Delete(id)
	return nil
}

// Count returns the number of live sessions
func (s *Store) Count() int {
	return s.items.ItemCount()
}

// Flush closes every session
func (s *Store) Flush() {
	for id := range s.items.Items() {
		s.items.Delete(id)
	}
}
