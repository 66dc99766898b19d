package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveSolve("OK", 3*time.Millisecond)
	m.ObserveSolve("SOLVER_001", time.Millisecond)
	m.ObserveCheck("dilution", 2*time.Second)
	m.AddSamples(1000)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()

	assert.True(t, strings.Contains(body, `macaw_solver_lp_solves_total{status="OK"} 1`))
	assert.True(t, strings.Contains(body, `macaw_solver_lp_solves_total{status="SOLVER_001"} 1`))
	assert.True(t, strings.Contains(body, `macaw_battery_check_seconds_count{check="dilution"} 1`))
	assert.True(t, strings.Contains(body, "macaw_solver_flux_samples_total 1000"))
}

func TestPrivateRegistryIsolation(t *testing.T) {
	a, b := New(), New()
	a.ObserveSolve("OK", time.Millisecond)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `status="OK"`)
	assert.NotNil(t, a.Registry())
}
