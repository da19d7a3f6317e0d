package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"adserver/native/adserver"
	"adserver/observability/metrics"
	"adserver/storage"
)

type testEnv struct {
	server  *Server
	handler http.Handler
	db      storage.Database
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewAdServer(reg)

	engine := adserver.NewEngine()
	engine.SetState(adserver.NewKVStore(db))
	engine.SetEmitter(m)

	srv, err := New(Config{MaxBodyBytes: 4096}, engine, nil, m, reg)
	require.NoError(t, err)
	return &testEnv{server: srv, handler: srv.Handler(), db: db}
}

func (env *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
	return body.Error
}

func TestServerRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/instantiate", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = env.post(t, "/execute", `{"add_ad":{"id":"a","image_url":"i","target_url":"t","reward_address":"r"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp adserver.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	require.Equal(t, adserver.EventTypeAddAd, resp.Events[0].Type)

	rec = env.post(t, "/execute", `{"batch_serve_ads":{"ids":["a","a"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/query", `{"ad":{"id":"a"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"a","image_url":"i","target_url":"t","views":2,"reward_address":"r"}`, rec.Body.String())

	rec = env.post(t, "/query", `"total_views"`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total_views":2}`, rec.Body.String())
}

func TestServerErrorStatuses(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/query", `"ads"`)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	decodeError(t, rec)

	require.Equal(t, http.StatusOK, env.post(t, "/instantiate", ``).Code)

	rec = env.post(t, "/execute", `{"serve_ad":{"id":"missing"}}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, decodeError(t, rec), "missing")

	add := `{"add_ad":{"id":"a","image_url":"i","target_url":"t","reward_address":"r"}}`
	require.Equal(t, http.StatusOK, env.post(t, "/execute", add).Code)
	rec = env.post(t, "/execute", add)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.post(t, "/execute", `{"launch":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/query", `{"ad":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/execute", `{"serve_ad":{"id":"`+strings.Repeat("x", 8192)+`"}}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestServerTruncatedBodyIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/execute", failingReader{})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeError(t, rec), "unexpected EOF")
}

func TestServerRejectsWrongMethod(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/execute", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerPreservesRequestID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}

func TestServerExposesMetrics(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.post(t, "/instantiate", `{}`).Code)
	require.Equal(t, http.StatusOK, env.post(t, "/execute", `{"add_ad":{"id":"a","image_url":"i","target_url":"t","reward_address":"r"}}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `adserver_commands_total{command="add_ad",outcome="ok"} 1`)
	require.Contains(t, body, `adserver_events_total{type="add_ad"} 1`)

	require.Equal(t, http.StatusOK, env.post(t, "/execute", `{"serve_ad":{"id":"a"}}`).Code)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body = rec.Body.String()
	require.Contains(t, body, "adserver_ads_served_total 1")
	require.Contains(t, body, "adserver_total_views 1")
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor(adserver.ErrStorageWrite))
	require.Equal(t, http.StatusInternalServerError, statusFor(http.ErrHandlerTimeout))
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil)
	require.Error(t, err)
}
