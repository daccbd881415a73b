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

func TestObserveRun(t *testing.T) {
	m := New()
	now := time.Unix(1760774400, 0)

	m.ObserveRun("published", now, true)
	m.ObserveRun("failed_generation", now.Add(time.Hour), false)
	m.ObserveRun("published", now, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed_generation")))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(m.LastSuccess))
}

func TestObservePublishAndHTTP(t *testing.T) {
	m := New()
	m.ObservePublish("DRAFT_ONLY")
	m.ObserveHTTP("GET", "/healthz", 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishOutcomes.WithLabelValues("DRAFT_ONLY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("published", time.Now(), true)
		m.ObserveGeneration(time.Second)
		m.ObservePublish("PUBLISHED")
		m.ObserveHTTP("GET", "/", 200)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveGeneration(42 * time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "digest_generation_duration_seconds_count 1")
}
