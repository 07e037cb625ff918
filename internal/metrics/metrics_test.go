package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	m := New()
	m.ItemOutcome("inserted")
	m.ItemOutcome("inserted")
	m.ItemOutcome("skipped")
	m.ExternalCall("gemini", "ok")
	m.RunFinished("manual", "ok", 3*time.Second)
	m.RewriteAttempts(2)
	m.SetRunning(true)
	m.SetCircuitOpen(true)
	m.SetCircuitOpen(false)

	assert.InDelta(t, 2, testutil.ToFloat64(m.itemsTotal.WithLabelValues("inserted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.itemsTotal.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.externalCalls.WithLabelValues("gemini", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("manual", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runInProgress), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.circuitOpen), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ItemOutcome("humanized")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `articles_rewriter_items_total{outcome="humanized"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
