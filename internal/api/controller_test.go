package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxypulse/proxypulse/internal/alerting"
	"github.com/proxypulse/proxypulse/internal/archive"
	"github.com/proxypulse/proxypulse/internal/datastore"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/notify"
	"github.com/proxypulse/proxypulse/internal/scheduler"
	"github.com/proxypulse/proxypulse/internal/service"
	"github.com/proxypulse/proxypulse/internal/snapshot"
	"github.com/proxypulse/proxypulse/internal/source"
)

const testToken = "test-token"

// stubSource serves a fixed agent list; Agents blocks while blockCh is
// open so tests can hold a cycle in flight.
type stubSource struct {
	blockCh chan struct{}
}

func (s *stubSource) Agents(ctx context.Context) ([]source.Agent, error) {
	if s.blockCh != nil {
		select {
		case <-s.blockCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []source.Agent{{ID: "agent-1", Name: "edge"}}, nil
}

func (s *stubSource) Collect(_ context.Context, _ string, _ snapshot.Window) (*source.Batch, error) {
	return &source.Batch{Metrics: map[string]float64{"errorRate": 0}}, nil
}

type nullTransport struct{}

func (nullTransport) Deliver(_ context.Context, _ notify.Alert) notify.Delivery {
	return notify.Delivery{Success: true}
}

type apiFixture struct {
	controller *Controller
	src        *stubSource
	notifRepo  repository.NotificationRepository
	ruleRepo   repository.AlertRuleRepository
}

func setupAPI(t *testing.T, opts Options) *apiFixture {
	t.Helper()

	manager, err := datastore.NewSQLiteManager(datastore.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() {
		_ = manager.Close()
	})

	db := manager.DB()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	snapRepo := repository.NewSnapshotRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	ruleRepo := repository.NewAlertRuleRepository(db)
	configRepo := repository.NewConfigRepository(db)

	engine := alerting.NewEngine(ruleRepo, notifRepo, nullTransport{}, time.Second, log)
	policy := archive.NewPolicy(snapRepo, notifRepo, configRepo, log)
	coord := service.NewCoordinator(snapRepo, engine, policy, log)
	require.NoError(t, coord.Initialize(t.Context()))
	t.Cleanup(coord.Shutdown)

	src := &stubSource{}
	sched := scheduler.New(src, coord, scheduler.Options{Tick: time.Hour, FetchTimeout: 2 * time.Second}, log)
	t.Cleanup(sched.Stop)

	controller := New(sched, coord, policy, notifRepo, ruleRepo, configRepo, opts, log)
	return &apiFixture{controller: controller, src: src, notifRepo: notifRepo, ruleRepo: ruleRepo}
}

// do performs a request against the in-memory router.
func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	rec := httptest.NewRecorder()
	f.controller.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetStatus(t *testing.T) {
	f := setupAPI(t, Options{})

	rec := f.do(http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "scheduler")
	assert.Contains(t, body, "services")
	assert.Contains(t, body, "retained_snapshots")
}

func TestTriggerRequiresToken(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken, TriggerEnabled: true})

	rec := f.do(http.MethodPost, "/api/v1/trigger", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/trigger", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTriggerDisabled(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken, TriggerEnabled: false})

	rec := f.do(http.MethodPost, "/api/v1/trigger", testToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerRunsCycle(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken, TriggerEnabled: true})

	rec := f.do(http.MethodPost, "/api/v1/trigger", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody(t, rec)["status"])
}

func TestTriggerRejectsInFlightCycle(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken, TriggerEnabled: true})
	f.src.blockCh = make(chan struct{})

	done := make(chan struct{})
	go func() {
		f.do(http.MethodPost, "/api/v1/trigger", testToken, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec := f.do(http.MethodPost, "/api/v1/trigger", testToken, nil)
		return rec.Code == http.StatusConflict
	}, time.Second, 5*time.Millisecond)

	close(f.src.blockCh)
	<-done
}

func TestGetConfigDefaults(t *testing.T) {
	f := setupAPI(t, Options{})

	rec := f.do(http.MethodGet, "/api/v1/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(30), body["retention_days"])
	assert.Equal(t, "1h0m0s", body["archive_interval"])
}

func TestPatchConfig(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken})

	rec := f.do(http.MethodPatch, "/api/v1/config", testToken,
		map[string]any{"retention_days": 14, "archive_interval": "30m"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(14), body["retention_days"])
	assert.Equal(t, "30m0s", body["archive_interval"])

	// Round-trip through the read endpoint.
	rec = f.do(http.MethodGet, "/api/v1/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(14), decodeBody(t, rec)["retention_days"])
}

func TestPatchConfigRejectsZeroRetention(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken})

	rec := f.do(http.MethodPatch, "/api/v1/config", testToken,
		map[string]any{"retention_days": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchConfigRequiresToken(t *testing.T) {
	f := setupAPI(t, Options{Token: testToken})

	rec := f.do(http.MethodPatch, "/api/v1/config", "", map[string]any{"retention_days": 14})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
