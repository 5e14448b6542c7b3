package metrics

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncBuildOutcome(OutcomeSuccess)
	rec.IncBuildOutcome(OutcomeSuccess)
	rec.IncBuildOutcome(OutcomeFailure)
	rec.IncServeCacheHit()
	rec.IncServeCacheMiss()
	rec.IncPermissionDenied("pull")
	rec.IncBuildRejected()

	expected := `
# HELP docshost_build_outcomes_total Finished builds by terminal status
# TYPE docshost_build_outcomes_total counter
docshost_build_outcomes_total{outcome="success"} 2
docshost_build_outcomes_total{outcome="failure"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "docshost_build_outcomes_total"))

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.serveCache.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.serveCache.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.permissionDenied.WithLabelValues("pull")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.buildRejected))
}

func TestPrometheusRecorderHistograms(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveStageDuration("fetch", 120*time.Millisecond)
	rec.ObserveStageDuration("build", 3*time.Second)
	rec.ObserveBuildDuration(4 * time.Second)
	rec.ObserveArtifactsPublished(12)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "docshost_stage_duration_seconds")
	assert.Contains(t, names, "docshost_build_duration_seconds")
	assert.Contains(t, names, "docshost_artifacts_published")
}

func TestNoopRecorderIsSafe(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	rec.ObserveStageDuration("fetch", time.Second)
	rec.ObserveBuildDuration(time.Second)
	rec.IncBuildOutcome(OutcomeFailure)
	rec.ObserveArtifactsPublished(0)
	rec.IncServeCacheHit()
	rec.IncServeCacheMiss()
	rec.IncPermissionDenied("admin")
	rec.IncBuildRejected()
}
