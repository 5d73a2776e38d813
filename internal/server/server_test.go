// internal/server/server_test.go

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"locale/internal/adapter/eventbus"
	"locale/internal/config"
	"locale/internal/domain/event"
	"locale/internal/metrics"
	"locale/internal/server/handlers"
	"locale/internal/service/assistant"
	"locale/internal/service/render"
	"locale/internal/service/retrieval"
	"locale/internal/service/search"
	sessionService "locale/internal/service/session"
)

const twoEvents = `[
 {"event_category":"jazz","event_name":"Rome Jazz","event_source_link":"https://jazz.example","event_date":"2025-10-15","event_location":"41.87, 12.57","event_description":"Late set"},
 {"event_category":"art","event_name":"Nowhere","event_source_link":"https://art.example","event_date":"2025-10-16","event_location":"somewhere","event_description":"x"}
]`

type stubModel struct {
	text string
	err  error
}

func (s *stubModel) Mode() event.Mode { return event.ModeStructured }

func (s *stubModel) Retrieve(context.Context, string, retrieval.Options) (event.RawResult, error) {
	if s.err != nil {
		return event.RawResult{}, s.err
	}
	return event.RawResult{Mode: event.ModeStructured, Text: s.text}, nil
}

func (s *stubModel) Generate(context.Context, string, retrieval.Request) (string, error) {
	return "Try the jazz clubs in Trastevere.\nINTERESTS: jazz", s.err
}

func newTestServer(t *testing.T, model *stubModel, configErr error, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	log := zap.NewNop()
	m := metrics.New()
	bus := eventbus.NewLocalBus()
	store := sessionService.NewStore(sessionService.StoreConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour}, log, m)
	renderer := render.NewRenderer(render.Config{}, nil, log, m)

	var (
		retriever search.Retriever
		generator assistant.Generator
	)
	if model != nil {
		retriever = model
		generator = model
	}

	srv := NewServer(cfg, Dependencies{
		Sessions:  store,
		Search:    search.NewService(store, retriever, configErr, renderer, bus, log, m),
		Assistant: assistant.NewService(assistant.Config{}, store, generator, configErr, bus, log),
		Bus:       bus,
		Metrics:   m,
		Status: handlers.StatusInfo{
			Provider:  cfg.Model.Provider,
			Mode:      event.ModeStructured,
			Push:      "local",
			ConfigErr: configErr,
			Sessions:  store.Count,
		},
	}, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		bus.Close()
		store.Flush()
	})
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := do(t, ts, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubModel{text: twoEvents}, nil, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSearchFlow(t *testing.T) {
	ts := newTestServer(t, &stubModel{text: twoEvents}, nil, nil)
	id := createSession(t, ts)
	base := "/api/v1/sessions/" + id

	resp, body := do(t, ts, http.MethodPut, base+"/criteria",
		`{"interests":["jazz"," Jazz ","art"],"location":"Rome","date_range":{"start":"2025-10-15","end":"2025-10-17"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"jazz", "art"}, body["interests"])

	resp, body = do(t, ts, http.MethodPost, base+"/search", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := body["view"].(map[string]interface{})
	assert.Len(t, view["cards"], 1)
	assert.Len(t, view["skipped"], 1)
	result := body["result"].(map[string]interface{})
	assert.Len(t, result["events"], 2)

	resp, body = do(t, ts, http.MethodGet, base+"/events", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["search_requested"])
	assert.Equal(t, float64(1), body["token"])

	resp, _ = do(t, ts, http.MethodGet, base+"/events.geojson", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	resp, _ = do(t, ts, http.MethodGet, base+"/events.ics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "locale-events.ics")
}

func TestSearchWithoutInterests(t *testing.T) {
	ts := newTestServer(t, &stubModel{text: twoEvents}, nil, nil)
	id := createSession(t, ts)

	resp, body := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/search", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(event.KindMissingInterests), body["kind"])
}

func TestSearchRetrievalFailure(t *testing.T) {
	model := &stubModel{err: event.NewError(event.KindTimeout, "retrieval.search", context.DeadlineExceeded)}
	ts := newTestServer(t, model, nil, nil)
	id := createSession(t, ts)
	base := "/api/v1/sessions/" + id

	resp, _ := do(t, ts, http.MethodPost, base+"/interests", `{"interest":"jazz"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, ts, http.MethodPost, base+"/search", `{"strict":true}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, string(event.KindTimeout), body["kind"])
}

func TestStatusReportsMissingKey(t *testing.T) {
	cfg := config.Default()
	ts := newTestServer(t, nil, cfg.MissingKey(), nil)

	resp, body := do(t, ts, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, false, body["ready"])
	assert.Contains(t, body["error"], "Action Required: GOOGLE_API_KEY")

	id := createSession(t, ts)
	resp, _ = do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/interests", `{"interest":"jazz"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/search", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, string(event.KindConfigMissing), body["kind"])
}

func TestStatusReady(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)
	createSession(t, ts)

	resp, body := do(t, ts, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)

	resp, _ := do(t, ts, http.MethodGet, "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/api/v1/sessions/nope/search", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidCriteria(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)
	id := createSession(t, ts)

	resp, _ := do(t, ts, http.MethodPut, "/api/v1/sessions/"+id+"/criteria",
		`{"interests":["jazz"],"date_range":{"start":"2025-10-20","end":"2025-10-15"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPut, "/api/v1/sessions/"+id+"/criteria", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInterestLifecycle(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)
	id := createSession(t, ts)
	base := "/api/v1/sessions/" + id

	resp, _ := do(t, ts, http.MethodPost, base+"/interests", `{"interest":"street food"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, base+"/interests", `{"interest":"Street Food"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, ts, http.MethodDelete, base+"/interests/street%20food", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["interests"])

	resp, _ = do(t, ts, http.MethodDelete, base+"/interests/street%20food", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)
	id := createSession(t, ts)
	base := "/api/v1/sessions/" + id

	resp, body := do(t, ts, http.MethodPost, base+"/chat", `{"content":"Any music in Rome?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"jazz"}, body["added_interests"])

	resp, body = do(t, ts, http.MethodGet, base+"/chat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["history"], 2)

	resp, _ = do(t, ts, http.MethodPost, base+"/chat", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, nil)
	id := createSession(t, ts)

	resp, _ := do(t, ts, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, nil, func(c *config.Config) {
		c.Auth.Required = true
	})

	resp, _ := do(t, ts, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, ts, http.MethodPost, "/api/v1/sessions", "", "X-Forwarded-User", "alice@example.com")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = do(t, ts, http.MethodGet, "/api/v1/sessions/"+id, "", "X-Forwarded-User", "alice@example.com")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodGet, "/api/v1/sessions/"+id, "", "X-Forwarded-User", "bob@example.com")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubModel{}, errors.New("unused"), nil)
	createSession(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
