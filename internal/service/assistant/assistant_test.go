// internal/service/assistant/assistant_test.go

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/domain/identity"
	"locale/internal/domain/session"
	"locale/internal/metrics"
	"locale/internal/service/retrieval"
	sessionService "locale/internal/service/session"
)

type fakeGenerator struct {
	reply string
	err   error
	reqs  []retrieval.Request
}

func (f *fakeGenerator) Generate(_ context.Context, operation string, req retrieval.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func setup(t *testing.T, gen Generator, cfg Config) (*Service, *session.State) {
	t.Helper()
	store := sessionService.NewStore(sessionService.StoreConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour}, zap.NewNop(), metrics.New())
	st := store.Create(identity.Anonymous)
	return NewService(cfg, store, gen, nil, nil, zap.NewNop()), st
}

func TestChatAppendsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "Florence is lovely in October."}
	svc, st := setup(t, gen, Config{})
	_, err := st.AddInterest("jazz")
	require.NoError(t, err)

	reply, err := svc.Chat(context.Background(), st.ID(), "  What should I see?  ")
	require.NoError(t, err)

	assert.Equal(t, session.RoleAssistant, reply.Message.Role)
	assert.Equal(t, "Florence is lovely in October.", reply.Message.Content)
	assert.Empty(t, reply.AddedInterests)

	h := st.History(0)
	require.Len(t, h, 2)
	assert.Equal(t, session.RoleUser, h[0].Role)
	assert.Equal(t, "What should I see?", h[0].Content)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, Persona, gen.reqs[0].System)
	assert.False(t, gen.reqs[0].Schema)
	assert.Contains(t, gen.reqs[0].Prompt, "Interests: jazz")
}

func TestChatHistoryLimit(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, st := setup(t, gen, Config{HistoryLimit: 2})

	for i := 0; i < 5; i++ {
		_, err := svc.Chat(context.Background(), st.ID(), fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	last := gen.reqs[len(gen.reqs)-1].Prompt
	assert.NotContains(t, last, "User: message 2\n")
	assert.Contains(t, last, "User: message 3\n")
	assert.Contains(t, last, "User: message 4\n")
	assert.Len(t, st.History(0), 10)
}

func TestChatAddsStatedInterests(t *testing.T) {
	gen := &fakeGenerator{reply: "Great, I'll look for those.\nINTERESTS: Jazz, street food"}
	svc, st := setup(t, gen, Config{})
	_, err := st.AddInterest("jazz")
	require.NoError(t, err)

	reply, err := svc.Chat(context.Background(), st.ID(), "I love jazz and street food")
	require.NoError(t, err)

	assert.Equal(t, "Great, I'll look for those.", reply.Message.Content)
	assert.Equal(t, []string{"street food"}, reply.AddedInterests)
	assert.Equal(t, []string{"jazz", "street food"}, st.Criteria().Interests)
}

func TestChatFailureLeavesHistory(t *testing.T) {
	gen := &fakeGenerator{err: event.NewError(event.KindTimeout, "retrieval.chat", context.DeadlineExceeded)}
	svc, st := setup(t, gen, Config{})

	_, err := svc.Chat(context.Background(), st.ID(), "hello")
	assert.ErrorIs(t, err, event.ErrTimeout)
	assert.Empty(t, st.History(0))
}

func TestChatValidation(t *testing.T) {
	svc, st := setup(t, &fakeGenerator{reply: "ok"}, Config{MaxMessageLength: 5})

	_, err := svc.Chat(context.Background(), st.ID(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Chat(context.Background(), st.ID(), "too long")
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = svc.Chat(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestChatConfigMissing(t *testing.T) {
	store := sessionService.NewStore(sessionService.StoreConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour}, zap.NewNop(), metrics.New())
	st := store.Create(identity.Anonymous)
	svc := NewService(Config{}, store, nil, errors.New("GOOGLE_API_KEY is not set"), nil, zap.NewNop())

	_, err := svc.Chat(context.Background(), st.ID(), "hi")
	assert.ErrorIs(t, err, event.ErrConfigMissing)
}

func TestExtractInterests(t *testing.T) {
	text, got := ExtractInterests("Sure!\ninterests: hiking,  , Hiking, museums")
	assert.Equal(t, "Sure!", text)
	assert.Equal(t, []string{"hiking", "museums"}, got)

	text, got = ExtractInterests("No list here")
	assert.Equal(t, "No list here", text)
	assert.Nil(t, got)
}

func TestConversation(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello"},
	}
	p := Conversation(identity.User{ID: "u1", DisplayName: "Ada", Authenticated: true}, history, "next",
		event.SearchCriteria{Interests: []string{"a", "b"}, Location: "Rome"})

	assert.True(t, strings.HasPrefix(p, "Conversation so far:\nUser: hi\nArchitect: hello\n"))
	assert.Contains(t, p, "User: next\n")
	assert.Contains(t, p, "Interests: a, b\n")
	assert.Contains(t, p, "Location: Rome\n")
	assert.Contains(t, p, "Traveller: Ada\n")

	anon := Conversation(identity.Anonymous, nil, "hi", event.SearchCriteria{})
	assert.Contains(t, anon, "Traveller: Guest\n")
	assert.True(t, strings.HasPrefix(anon, "User: hi\n"))
}

func TestChatAddressesSignedInUser(t *testing.T) {
	store := sessionService.NewStore(sessionService.StoreConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour}, zap.NewNop(), metrics.New())
	st := store.Create(identity.User{ID: "grace@example.com", Authenticated: true})
	gen := &fakeGenerator{reply: "Hello Grace"}
	svc := NewService(Config{}, store, gen, nil, nil, zap.NewNop())

	_, err := svc.Chat(context.Background(), st.ID(), "hello")
	require.NoError(t, err)
	require.Len(t, gen.reqs, 1)
	assert.Contains(t, gen.reqs[0].Prompt, "Traveller: grace@example.com\n")
}
