// internal/domain/session/state.go

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"locale/internal/domain/event"
	"locale/internal/domain/identity"
)

// ErrNotFound is returned when a session ID is unknown or expired
var ErrNotFound = errors.New("session not found")

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the architect chat
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the mutable record owned by one interactive session. All access
// goes through its methods; there is no package-level session state.
type State struct {
	mu sync.Mutex

	id         string
	user       identity.User
	createdAt  time.Time
	lastActive time.Time

	criteria        event.SearchCriteria
	searchRequested bool
	searching       bool
	generation      uint64
	cancel          context.CancelFunc

	result      *event.Result
	resultToken uint64
	lastErr     error
	history []Message
	closed  bool
}

// Snapshot is a point-in-time copy of a State safe to hand to other goroutines
type Snapshot struct {
	ID              string               `json:"id"`
	User            identity.User        `json:"user"`
	Criteria        event.SearchCriteria `json:"criteria"`
	SearchRequested bool                 `json:"search_requested"`
	Searching       bool                 `json:"searching"`
	Generation      uint64               `json:"generation"`
	Result          *event.Result        `json:"result,omitempty"`
	ResultToken     uint64               `json:"result_token,omitempty"`
	LastError       string               `json:"last_error,omitempty"`
	LastErrorKind   event.ErrorKind      `json:"last_error_kind,omitempty"`
	History         []Message            `json:"history,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	LastActive      time.Time            `json:"last_active"`
}

// NewState creates an empty session for user
func NewState(id string, user identity.User) *State {
	now := time.Now()
	return &State{
		id:         id,
		user:       user,
		createdAt:  now,
		lastActive: now,
		criteria:   event.SearchCriteria{Interests: []string{}},
	}
}

// ID returns the session identifier
func (s *State) ID() string {
	return s.id
}

// User returns the identity that opened the session
func (s *State) User() identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Touch records user activity
func (s *State) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// Criteria returns a copy of the current search criteria
func (s *State) Criteria() event.SearchCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria.Clone()
}

// SetCriteria replaces the form inputs. Interests are normalized; the
// location is stored verbatim.
func (s *State) SetCriteria(c event.SearchCriteria) error {
	interests := event.NormalizeInterests(c.Interests)
	if len(interests) > event.MaxInterests {
		return event.ErrTooManyInterests
	}
	if err := c.DateRange.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = event.SearchCriteria{
		Interests: interests,
		Location:  c.Location,
		DateRange: c.DateRange,
	}
	s.lastActive = time.Now()
	return nil
}

// AddInterest appends one interest unless it is already present. It reports
// whether the list changed.
func (s *State) AddInterest(interest string) (bool, error) {
	interest = strings.TrimSpace(interest)
	if interest == "" {
		return false, fmt.Errorf("interest must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := event.NormalizeInterests(append(append([]string(nil), s.criteria.Interests...), interest))
	if len(merged) == len(s.criteria.Interests) {
		return false, nil
	}
	if len(merged) > event.MaxInterests {
		return false, event.ErrTooManyInterests
	}
	s.criteria.Interests = merged
	s.lastActive = time.Now()
	return true, nil
}

// RemoveInterest drops an interest, matching case-insensitively
func (s *State) RemoveInterest(interest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.criteria.Interests {
		if strings.EqualFold(existing, strings.TrimSpace(interest)) {
			s.criteria.Interests = append(s.criteria.Interests[:i:i], s.criteria.Interests[i+1:]...)
			s.lastActive = time.Now()
			return true
		}
	}
	return false
}

// Reset clears criteria, results and chat history. Any retrieval in flight is
// cancelled and its response will be discarded.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopInFlight()
	s.generation++
	s.criteria = event.SearchCriteria{Interests: []string{}}
	s.searchRequested = false
	s.searching = false
	s.result = nil
	s.resultToken = 0
	s.lastErr = nil
	s.history = nil
	s.lastActive = time.Now()
}

// BeginSearch issues a new request token. The previous retrieval, if any, is
// cancelled. The returned context is cancelled when the search is superseded,
// completed or failed, or when the session closes.
func (s *State) BeginSearch(ctx context.Context) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopInFlight()
	s.generation++
	s.searchRequested = true
	s.searching = true
	s.lastActive = time.Now()

	searchCtx, cancel := context.WithCancel(ctx)
	if s.closed {
		cancel()
	}
	s.cancel = cancel
	return s.generation, searchCtx
}

// IsCurrent reports whether token is the latest issued request token
func (s *State) IsCurrent(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.generation
}

// CompleteSearch stores result if token is still current. A stale token
// leaves the state untouched and returns false.
func (s *State) CompleteSearch(token uint64, result event.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.generation {
		return false
	}
	s.stopInFlight()
	stored := result.Clone()
	s.result = &stored
	s.resultToken = token
	s.lastErr = nil
	s.searching = false
	return true
}

// FailSearch records err for a current token. The cached result from the
// previous search is kept.
func (s *State) FailSearch(token uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.generation {
		return false
	}
	s.stopInFlight()
	s.lastErr = err
	s.searching = false
	return true
}

// Result returns a copy of the last completed result, or nil
func (s *State) Result() *event.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil
	}
	out := s.result.Clone()
	return &out
}

// Committed returns a copy of the last completed result together with the
// request token that produced it. The token is 0 when there is no result.
func (s *State) Committed() (*event.Result, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil, 0
	}
	out := s.result.Clone()
	return &out, s.resultToken
}

// AppendHistory adds chat turns
func (s *State) AppendHistory(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, msgs...)
	s.lastActive = time.Now()
}

// History returns up to limit most recent chat turns; limit <= 0 returns all
func (s *State) History(limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]Message(nil), h...)
}

// Close cancels any retrieval in flight. Called when the session ends.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.stopInFlight()
}

// Snapshot copies the state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:              s.id,
		User:            s.user,
		Criteria:        s.criteria.Clone(),
		SearchRequested: s.searchRequested,
		Searching:       s.searching,
		Generation:      s.generation,
		History:         append([]Message(nil), s.history...),
		CreatedAt:       s.createdAt,
		LastActive:      s.lastActive,
	}
	if s.result != nil {
		r := s.result.Clone()
		snap.Result = &r
		snap.ResultToken = s.resultToken
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
		snap.LastErrorKind = event.KindOf(s.lastErr)
	}
	return snap
}

// stopInFlight must be called with mu held
func (s *State) stopInFlight() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
