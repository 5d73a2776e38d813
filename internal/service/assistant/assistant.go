// internal/service/assistant/assistant.go

// Package assistant runs the Architect chat alongside a session's search.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/domain/identity"
	"locale/internal/domain/session"
	"locale/internal/service/retrieval"
)

// Persona is the Architect's system instruction
const Persona = `You are the Architect, a friendly local guide helping the user plan
activities for their trip. Answer questions about the destination, the dates
and the events they may enjoy, and use web search for anything current.
Keep replies short and conversational, and address the traveller by name.

When the user tells you about new interests or hobbies they want events for,
finish your reply with one final line of the form:
INTERESTS: first interest, second interest
Only list interests the user stated. Omit the line otherwise.`

const interestsMarker = "INTERESTS:"

var (
	// ErrEmptyMessage rejects blank chat input
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrMessageTooLong rejects oversized chat input
	ErrMessageTooLong = errors.New("message is too long")
)

// Generator runs one grounded model call
type Generator interface {
	Generate(ctx context.Context, operation string, req retrieval.Request) (string, error)
}

// Sessions looks up live sessions
type Sessions interface {
	Get(id string) (*session.State, error)
}

// Publisher delivers chat notifications
type Publisher interface {
	Publish(n session.Notification) error
}

// Config contains configuration for the chat
type Config struct {
	HistoryLimit     int
	MaxMessageLength int
	Temperature      float32
}

// Reply is the assistant's answer plus any interests it added to the session
type Reply struct {
	Message        session.Message `json:"message"`
	AddedInterests []string        `json:"added_interests,omitempty"`
}

// Service answers chat messages
type Service struct {
	cfg       Config
	sessions  Sessions
	gen       Generator
	configErr error
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates a chat service. A nil gen or non-nil configErr makes
// every call fail with ConfigMissing.
func NewService(cfg Config, sessions Sessions, gen Generator, configErr error, publisher Publisher, logger *zap.Logger) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if configErr == nil && gen == nil {
		configErr = errors.New("no model client configured")
	}
	return &Service{
		cfg:       cfg,
		sessions:  sessions,
		gen:       gen,
		configErr: configErr,
		publisher: publisher,
		logger:    logger.Named("assistant"),
	}
}

// Chat sends message with the session's criteria and recent history to the
// model. History is only updated when the model answers.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(message) > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, s.cfg.MaxMessageLength)
	}

	st, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.configErr != nil {
		return nil, event.NewError(event.KindConfigMissing, "chat", s.configErr)
	}

	history := st.History(s.cfg.HistoryLimit)
	text, err := s.gen.Generate(ctx, "chat", retrieval.Request{
		Prompt:      Conversation(st.User(), history, message, st.Criteria()),
		System:      Persona,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.logger.Warn("Chat failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	content, suggested := ExtractInterests(text)
	var added []string
	for _, interest := range suggested {
		ok, err := st.AddInterest(interest)
		if err != nil {
			s.logger.Debug("Interest not added",
				zap.String("session_id", sessionID), zap.String("interest", interest), zap.Error(err))
			continue
		}
		if ok {
			added = append(added, interest)
		}
	}

	now := time.Now().UTC()
	reply := session.Message{Role: session.RoleAssistant, Content: content, CreatedAt: now}
	st.AppendHistory(
		session.Message{Role: session.RoleUser, Content: message, CreatedAt: now},
		reply,
	)

	s.publish(session.Notification{Type: session.ChatReplied, SessionID: sessionID, Timestamp: now})
	s.logger.Debug("Chat replied",
		zap.String("session_id", sessionID),
		zap.Int("history", len(history)),
		zap.Strings("added_interests", added),
	)

	return &Reply{Message: reply, AddedInterests: added}, nil
}

// Conversation renders history, the traveller, the current search criteria
// and the new message as a single prompt
func Conversation(user identity.User, history []session.Message, message string, c event.SearchCriteria) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			role := "User"
			if m.Role == session.RoleAssistant {
				role = "Architect"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User: %s\n\n", message)
	b.WriteString("Current trip details:\n")
	fmt.Fprintf(&b, "Traveller: %s\n", user.Name())
	fmt.Fprintf(&b, "Interests: %s\n", strings.Join(c.Interests, ", "))
	fmt.Fprintf(&b, "Location: %s\n", c.Location)
	fmt.Fprintf(&b, "Date: %s\n", c.DateRange.String())

	return b.String()
}

// ExtractInterests strips a trailing INTERESTS line from text and returns
// the interests it named
func ExtractInterests(text string) (string, []string) {
	text = strings.TrimSpace(text)
	idx := strings.LastIndex(text, "\n")
	last := text[idx+1:]

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(last)), interestsMarker) {
		return text, nil
	}

	list := strings.TrimSpace(last)[len(interestsMarker):]
	interests := event.NormalizeInterests(strings.Split(list, ","))

	if idx < 0 {
		return "", interests
	}
	return strings.TrimSpace(text[:idx]), interests
}

func (s *Service) publish(n session.Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(n); err != nil {
		s.logger.Warn("Failed to publish notification", zap.String("type", string(n.Type)), zap.Error(err))
	}
}
