// internal/service/session/store_test.go

package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"locale/internal/domain/identity"
	"locale/internal/domain/session"
	"locale/internal/metrics"
)

func newStore(ttl time.Duration) (*Store, *metrics.Metrics) {
	m := metrics.New()
	return NewStore(StoreConfig{IdleTimeout: ttl, CleanupInterval: time.Hour}, zap.NewNop(), m), m
}

func TestStoreCreateGetDelete(t *testing.T) {
	store, m := newStore(time.Hour)
	user := identity.User{ID: "u1", DisplayName: "Ada", Authenticated: true}

	st := store.Create(user)
	require.NotEmpty(t, st.ID())
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	got, err := store.Get(st.ID())
	require.NoError(t, err)
	assert.Same(t, st, got)
	assert.Equal(t, user, got.User())

	require.NoError(t, store.Delete(st.ID()))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))

	_, err = store.Get(st.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, store.Delete(st.ID()), session.ErrNotFound)
}

func TestStoreSessionsAreIndependent(t *testing.T) {
	store, _ := newStore(time.Hour)
	a := store.Create(identity.Anonymous)
	b := store.Create(identity.Anonymous)

	_, err := a.AddInterest("jazz")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, []string{"jazz"}, a.Criteria().Interests)
	assert.Empty(t, b.Criteria().Interests)
}

func TestStoreExpiry(t *testing.T) {
	store, _ := newStore(10 * time.Millisecond)
	st := store.Create(identity.Anonymous)

	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(st.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStoreDeleteCancelsSearch(t *testing.T) {
	store, _ := newStore(time.Hour)
	st := store.Create(identity.Anonymous)

	_, ctx := st.BeginSearch(context.Background())
	require.NoError(t, store.Delete(st.ID()))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("search context was not cancelled")
	}
}

func TestStoreFlush(t *testing.T) {
	store, m := newStore(time.Hour)
	store.Create(identity.Anonymous)
	store.Create(identity.Anonymous)

	store.Flush()
	assert.Zero(t, store.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}
