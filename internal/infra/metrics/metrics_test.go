package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndExposition(t *testing.T) {
	m := New()
	m.Uploads.WithLabelValues("accessibility_check", "passthrough").Inc()
	m.StageFailures.WithLabelValues("accessibility_check", "remote").Add(2)
	m.CacheHits.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `a11y_gateway_uploads_total{kind="accessibility_check",path="passthrough"} 1`)
	assert.Contains(t, out, `a11y_gateway_stage_failures_total{kind="accessibility_check",stage="remote"} 2`)
	assert.Contains(t, out, "a11y_gateway_report_cache_hits_total 1")
	assert.Contains(t, out, "go_goroutines")
}
