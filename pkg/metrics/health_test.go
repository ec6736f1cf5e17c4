package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetProcessHealth() {
	proc = &processHealth{
		components: make(map[string]ComponentStatus),
		started:    time.Now(),
	}
}

func registerCritical() {
	for _, name := range criticalComponents {
		SetComponent(name, true, "")
	}
}

func TestHealthAllComponentsHealthy(t *testing.T) {
	resetProcessHealth()
	SetVersion("1.0.0")
	SetComponent("kvstore", true, "")
	SetComponent("executor", true, "")

	report := Health()
	require.Equal(t, "healthy", report.Status)
	require.Equal(t, "1.0.0", report.Version)
	require.Len(t, report.Components, 2)
}

func TestHealthOneUnhealthyComponent(t *testing.T) {
	resetProcessHealth()
	SetComponent("kvstore", true, "")
	SetComponent("executor", false, "ssh transport down")

	report := Health()
	require.Equal(t, "unhealthy", report.Status)
	require.Equal(t, "unhealthy: ssh transport down", report.Components["executor"])
}

func TestSetComponentLatestReportWins(t *testing.T) {
	resetProcessHealth()
	SetComponent("reconciler", false, "starting")
	SetComponent("reconciler", true, "")

	report := Health()
	require.Equal(t, "healthy", report.Status)
}

func TestReadinessWaitsForCriticalComponents(t *testing.T) {
	resetProcessHealth()
	SetComponent("kvstore", true, "")

	report := Readiness()
	require.Equal(t, "not_ready", report.Status)
	require.Contains(t, report.Message, "waiting for")
	require.Equal(t, "not registered", report.Components["executor"])

	registerCritical()
	report = Readiness()
	require.Equal(t, "ready", report.Status)
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	resetProcessHealth()
	SetComponent("kvstore", true, "")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	SetComponent("kvstore", false, "bolt file corrupt")
	rec = httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report StatusReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, "unhealthy", report.Status)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	resetProcessHealth()
	rec := httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	registerCritical()
	rec = httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	resetProcessHealth()
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "alive", body["status"])
}
