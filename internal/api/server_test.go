package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/api"
	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/monitor"
	"github.com/bastionproject/bastion/internal/recovery"
	"github.com/bastionproject/bastion/internal/retention"
	"github.com/bastionproject/bastion/internal/testutil"
	"github.com/bastionproject/bastion/internal/verify"
)

type testEnv struct {
	server *api.Server
	layout backup.Layout
	store  *backup.Store
	guard  *backup.Guard
	dumper *testutil.FakeDumper
	orch   *recovery.Orchestrator
	alerts *monitor.AlertStore
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	dumper := &testutil.FakeDumper{RowCountN: 100}
	replicator := backup.NewReplicator(&testutil.FakeCopier{}, nil)
	guard := &backup.Guard{}

	dbProducer := backup.NewDatabaseProducer(layout, store, dumper, replicator,
		guard, config.DatabaseConfig{Name: "app"}, 30)
	docProducer := backup.NewDocumentProducer(layout, store, dumper, replicator,
		guard, config.DocumentsConfig{Path: t.TempDir()}, 30)

	alerts, err := monitor.NewAlertStore(layout.AlertsDir())
	require.NoError(t, err)
	engine := monitor.NewEngine(layout, store, alerts,
		monitor.NewNotifier(monitor.LogChannel{}), 1<<30, 2*time.Hour)

	orch, err := recovery.NewOrchestrator(layout, store, dumper)
	require.NoError(t, err)

	server := api.NewServer(config.APIConfig{
		ListenAddr:        ":0",
		RequestsPerSecond: 1000,
		BurstSize:         1000,
	}, api.Deps{
		Store:        store,
		DBProducer:   dbProducer,
		DocProducer:  docProducer,
		Verifier:     verify.NewVerifier(layout, store),
		Enforcer:     retention.NewEnforcer(layout, store),
		Monitor:      engine,
		Alerts:       alerts,
		Orchestrator: orch,
	})
	return &testEnv{server: server, layout: layout, store: store, guard: guard, dumper: dumper, orch: orch, alerts: alerts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
}

func TestGetBackup(t *testing.T) {
	env := newTestServer(t)
	seeded := testutil.SeedFullBackup(t, env.layout, env.store)

	rec := env.do(t, http.MethodGet, "/api/database/backups/"+seeded.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got backup.Record
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, seeded.ID, got.ID)
}

func TestGetBackupNotFound(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/api/database/backups/full_0_deadbeef", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestFullBackupAccepted(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/database/backup/full", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode(t, rec).Success)
}

func TestFullBackupBusy(t *testing.T) {
	env := newTestServer(t)
	require.NoError(t, env.guard.Acquire())
	defer env.guard.Release()

	rec := env.do(t, http.MethodPost, "/api/database/backup/full", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/documents/backup", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFullBackupConcurrentRejected(t *testing.T) {
	env := newTestServer(t)
	env.dumper.Gate = make(chan struct{})

	// The first request claims the guard before it returns 202, so the
	// second one sees a conflict even though the dump is still running.
	rec := env.do(t, http.MethodPost, "/api/database/backup/full", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/database/backup/full", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(env.dumper.Gate)
	require.Eventually(t, func() bool { return !env.guard.Busy() },
		5*time.Second, 10*time.Millisecond)
}

func TestCreatePlan(t *testing.T) {
	env := newTestServer(t)
	body := `{"name":"primary","rpoMinutes":60,"rtoMinutes":30,"failoverRegions":["eu-west-1"]}`
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/plans", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	var plan recovery.Plan
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &plan))
	assert.True(t, strings.HasPrefix(plan.ID, "plan_"))

	rec = env.do(t, http.MethodGet, "/api/disaster-recovery/plans/"+plan.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreatePlanInvalid(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/plans", `{"name":"p"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailoverUnknownRegion(t *testing.T) {
	env := newTestServer(t)
	plan, err := env.orch.CreatePlan(&recovery.Plan{
		Name: "primary", RPOMinutes: 60, RTOMinutes: 30,
		FailoverRegions: []string{"eu-west-1"},
	})
	require.NoError(t, err)

	body := `{"planId":"` + plan.ID + `","targetRegion":"mars-central-1"}`
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/failover", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointInTimeRecoveryBadTimestamp(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/point-in-time-recovery",
		`{"targetTimestamp":"yesterday"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "RFC 3339")
}

func TestPointInTimeRecoveryAccepted(t *testing.T) {
	env := newTestServer(t)
	testutil.SeedFullBackup(t, env.layout, env.store, testutil.WithVerified())

	body := `{"targetTimestamp":"` + time.Now().Format(time.RFC3339) + `"}`
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/point-in-time-recovery", body)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var started api.RecoveryStartedDTO
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &started))
	assert.True(t, strings.HasPrefix(started.RecoveryID, "recovery_"))
}

func TestPointInTimeRecoveryNoCandidate(t *testing.T) {
	env := newTestServer(t)
	body := `{"targetTimestamp":"` + time.Now().Format(time.RFC3339) + `"}`
	rec := env.do(t, http.MethodPost, "/api/disaster-recovery/point-in-time-recovery", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertLifecycle(t *testing.T) {
	env := newTestServer(t)
	alert := env.alerts.Raise(monitor.AlertBackupStale, monitor.SeverityHigh, "old")
	require.NotNil(t, alert)

	rec := env.do(t, http.MethodGet, "/api/monitoring/alerts?unresolved=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []*monitor.Alert
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &alerts))
	require.Len(t, alerts, 1)

	rec = env.do(t, http.MethodPost, "/api/monitoring/alerts/"+alert.ID+"/acknowledge",
		`{"by":"oncall"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/monitoring/alerts/"+alert.ID+"/resolve", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/monitoring/alerts/alert_0_deadbeef/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/api/monitoring/dashboard", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var d monitor.Dashboard
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &d))
	assert.Equal(t, int64(1<<30), d.StorageCapacity)
}

func TestVerifyUnknownBackup(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/verification/verify/full_0_deadbeef", "")

	// Verification always yields a report; failures are data.
	require.Equal(t, http.StatusOK, rec.Code)
	var check verify.IntegrityCheck
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &check))
	assert.False(t, check.Restorable)
}

func TestStatistics(t *testing.T) {
	env := newTestServer(t)
	testutil.SeedFullBackup(t, env.layout, env.store)

	rec := env.do(t, http.MethodGet, "/api/database/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats backup.Stats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.Equal(t, 1, stats.Total)
}

func TestLifecycleStatsClassLookup(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/retention/lifecycle-stats?class=audit_trail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var policy retention.Policy
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &policy))
	assert.Equal(t, "audit_trail", policy.TargetClass)
	assert.Equal(t, 365, policy.RetentionPeriodDays)

	rec = env.do(t, http.MethodGet, "/api/retention/lifecycle-stats?class=nonsense", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/retention/lifecycle-stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats retention.LifecycleStats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.NotEmpty(t, stats.Policies)
}
