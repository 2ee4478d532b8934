package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

type fakeRunner struct {
	summary   monitor.BatchSummary
	err       error
	last      *monitor.BatchSummary
	gotForce  bool
	runCalled bool
}

func (f *fakeRunner) RunCycle(_ context.Context, force bool) (monitor.BatchSummary, error) {
	f.runCalled = true
	f.gotForce = force
	return f.summary, f.err
}

func (f *fakeRunner) LastSummary() (monitor.BatchSummary, bool) {
	if f.last == nil {
		return monitor.BatchSummary{}, false
	}
	return *f.last, true
}

func newTestServer(runner ScanRunner, cfg Config) *httptest.Server {
	return httptest.NewServer(NewServer(runner, cfg, zap.NewNop()).Handler())
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, Config{})
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTriggerScanReturnsSummary(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: monitor.BatchSummary{CycleID: "c1", Scanned: 3, NewItems: 2}}
	srv := newTestServer(runner, Config{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/scan", "application/json", strings.NewReader(`{"force":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, runner.gotForce)

	var got monitor.BatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "c1", got.CycleID)
	require.Equal(t, 3, got.Scanned)
}

func TestTriggerScanEmptyBodyDefaultsUnforced(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, Config{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/scan", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, runner.runCalled)
	require.False(t, runner.gotForce)
}

func TestTriggerScanInvalidJSON(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, Config{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/scan", "application/json", strings.NewReader("{force"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, runner.runCalled)
}

func TestTriggerScanRunnerError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("db offline")}
	srv := newTestServer(runner, Config{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/scan", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLastScan(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/scan/last")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	runner.last = &monitor.BatchSummary{CycleID: "c9"}
	resp, err = http.Get(srv.URL + "/v1/scan/last")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got monitor.BatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "c9", got.CycleID)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, Config{APIKey: "secret"})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
