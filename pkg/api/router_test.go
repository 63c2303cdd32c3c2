package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/history"
	"github.com/nodewatch/plugind/internal/plugin"
)

// echoWriter plays the plugin side of a FUNCTION round trip: every request
// line written to it is answered by delivering a canned result for the
// request's transaction id, as if the plugin had sent
// FUNCTION_RESULT_BEGIN...END back through its parser session.
type echoWriter struct {
	fn      *functions.Registry
	payload string
}

func (w *echoWriter) Write(p []byte) (int, error) {
	fields := strings.Fields(strings.TrimSpace(string(p)))
	if len(fields) >= 2 && fields[0] == "FUNCTION" {
		txn := fields[1]
		go w.fn.Deliver(txn, 200, "text/plain", time.Unix(1700000000, 0), []byte(w.payload))
	}
	return len(p), nil
}

func newTestServer(t *testing.T, rec *plugin.Record) *httptest.Server {
	t.Helper()
	sup := plugin.NewSupervisor()
	require.NoError(t, sup.Register(rec))
	srv := httptest.NewServer(NewRouter(sup, nil, time.Second, time.Now(), nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Healthz(t *testing.T) {
	srv := newTestServer(t, plugin.NewRecord("p", "p.plugin", "/p.plugin", "", 1))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ListAndGetPlugins(t *testing.T) {
	srv := newTestServer(t, plugin.NewRecord("python.d", "python.d.plugin", "/python.d.plugin", "", 1))

	resp, err := http.Get(srv.URL + "/v1/plugins")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listBody struct {
		Data []plugin.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	require.Len(t, listBody.Data, 1)
	assert.Equal(t, "python.d", listBody.Data[0].ID)

	missing, err := http.Get(srv.URL + "/v1/plugins/nope")
	require.NoError(t, err)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRouter_PluginHistory(t *testing.T) {
	hist, err := history.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	require.NoError(t, hist.Record("python.d", history.KindSerialFailureThreshold, "3 consecutive empty runs"))
	time.Sleep(time.Millisecond)
	require.NoError(t, hist.Record("python.d", history.KindObsolete, "marked obsolete"))

	sup := plugin.NewSupervisor()
	require.NoError(t, sup.Register(plugin.NewRecord("python.d", "python.d.plugin", "/python.d.plugin", "", 1)))
	srv := httptest.NewServer(NewRouter(sup, nil, time.Second, time.Now(), hist))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/plugins/python.d/history")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []history.Event `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, history.KindObsolete, body.Data[0].Kind)

	empty, err := http.Get(srv.URL + "/v1/plugins/other/history")
	require.NoError(t, err)
	defer func() { _ = empty.Body.Close() }()
	assert.Equal(t, http.StatusOK, empty.StatusCode)
}

func TestRouter_PluginHistoryWithoutStoreIs503(t *testing.T) {
	srv := newTestServer(t, plugin.NewRecord("p", "p.plugin", "/p.plugin", "", 1))

	resp, err := http.Get(srv.URL + "/v1/plugins/p/history")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// S8: the function round trip returns the delivered payload within the
// request's timeout.
func TestRouter_InvokeFunctionRoundTrip(t *testing.T) {
	rec := plugin.NewRecord("p", "p.plugin", "/p.plugin", "", 1)
	fn := functions.NewRegistry()
	rec.AttachWire(fn, &echoWriter{fn: fn, payload: "v1.2.3\n"})

	srv := newTestServer(t, rec)

	resp, err := http.Post(srv.URL+"/v1/plugins/p/functions/get_version", "application/json",
		strings.NewReader(`{"timeout_ms": 2000}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			StatusCode  int    `json:"status_code"`
			ContentType string `json:"content_type"`
			Payload     string `json:"payload"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 200, body.Data.StatusCode)
	assert.Equal(t, "text/plain", body.Data.ContentType)
	assert.Equal(t, "v1.2.3\n", body.Data.Payload)
	assert.Equal(t, 0, fn.Len())
}

// S8: past the deadline the endpoint answers 504 once sweep reaps the entry.
func TestRouter_InvokeFunctionTimesOut(t *testing.T) {
	rec := plugin.NewRecord("p", "p.plugin", "/p.plugin", "", 1)
	fn := functions.NewRegistry()
	rec.AttachWire(fn, &strings.Builder{})

	srv := newTestServer(t, rec)

	go func() {
		time.Sleep(100 * time.Millisecond)
		fn.Sweep(time.Now().Add(time.Minute))
	}()

	resp, err := http.Post(srv.URL+"/v1/plugins/p/functions/slow", "application/json",
		strings.NewReader(`{"timeout_ms": 50}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestRouter_InvokeFunctionWithoutWireIs503(t *testing.T) {
	srv := newTestServer(t, plugin.NewRecord("p", "p.plugin", "/p.plugin", "", 1))

	resp, err := http.Post(srv.URL+"/v1/plugins/p/functions/get_version", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
