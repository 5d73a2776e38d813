// internal/domain/event/model_test.go

package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	c, err := ParseCoordinates("41.87, 12.57")
	require.NoError(t, err)
	assert.InDelta(t, 41.87, c.Lat, 1e-9)
	assert.InDelta(t, 12.57, c.Lon, 1e-9)
	assert.Equal(t, "41.87, 12.57", c.String())

	for _, bad := range []string{
		"not-a-coordinate",
		"",
		"41.87",
		"1, 2, 3",
		"NaN, 1",
		"1, Inf",
		"91, 0",
		"0, -180.5",
		"north, east",
	} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseCoordinates(bad)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
			assert.Equal(t, KindInvalidEventGeometry, KindOf(err))
		})
	}
}

func TestNormalizeInterests(t *testing.T) {
	got := NormalizeInterests([]string{" Jazz ", "art", "", "jazz", "ART", "food"})
	assert.Equal(t, []string{"Jazz", "art", "food"}, got)
}

func TestDateRange(t *testing.T) {
	single, err := ParseDateRange("2025-10-15", "")
	require.NoError(t, err)
	assert.True(t, single.IsSingle())
	assert.Equal(t, "2025-10-15", single.String())

	span, err := ParseDateRange("2025-10-15", "2025-10-20")
	require.NoError(t, err)
	assert.Equal(t, "2025-10-15 - 2025-10-20", span.String())

	_, err = ParseDateRange("2025-10-20", "2025-10-15")
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = ParseDateRange("15/10/2025", "")
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = ParseDateRange("", "2025-10-15")
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	empty, err := ParseDateRange("", "")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Equal(t, "", empty.String())
}

func TestDateRangeJSON(t *testing.T) {
	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(`{"interests":["jazz"],"location":"Rome","date_range":{"start":"2025-10-15","end":"2025-10-20"}}`), &c))
	assert.Equal(t, "2025-10-15 - 2025-10-20", c.DateRange.String())

	b, err := json.Marshal(c.DateRange)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2025-10-15","end":"2025-10-20"}`, string(b))

	err = json.Unmarshal([]byte(`{"date_range":{"start":"2025-10-20","end":"2025-10-15"}}`), &c)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(KindRetrievalFailed, "retrieval.search", cause)

	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "retrieval.search: retrieval_failed: dial tcp: timeout", err.Error())
	assert.Equal(t, KindRetrievalFailed, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestResultCloneIsIndependent(t *testing.T) {
	r := Result{Mode: ModeStructured, Events: []EventRecord{{Name: "a"}}}
	c := r.Clone()
	c.Events[0].Name = "b"
	assert.Equal(t, "a", r.Events[0].Name)
}
