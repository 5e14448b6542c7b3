package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on a Prometheus registry.
type PrometheusRecorder struct {
	stageDuration      *prom.HistogramVec
	buildDuration      prom.Histogram
	buildOutcome       *prom.CounterVec
	artifactsPublished prom.Histogram
	serveCache         *prom.CounterVec
	permissionDenied   *prom.CounterVec
	buildRejected      prom.Counter
}

// NewPrometheusRecorder constructs and registers the metric set.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docshost",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docshost",
			Name:      "build_duration_seconds",
			Help:      "Total build duration from dequeue to terminal status",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docshost",
			Name:      "build_outcomes_total",
			Help:      "Finished builds by terminal status",
		}, []string{"outcome"}),
		artifactsPublished: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docshost",
			Name:      "artifacts_published",
			Help:      "Files uploaded per successful build",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
		}),
		serveCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docshost",
			Name:      "serve_cache_total",
			Help:      "Artifact serving cache lookups by result",
		}, []string{"result"}),
		permissionDenied: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docshost",
			Name:      "permission_denied_total",
			Help:      "Permission engine denials by requested action",
		}, []string{"action"}),
		buildRejected: prom.NewCounter(prom.CounterOpts{
			Namespace: "docshost",
			Name:      "build_rejected_total",
			Help:      "Triggers refused because a build was already in flight",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.buildOutcome,
		pr.artifactsPublished, pr.serveCache, pr.permissionDenied, pr.buildRejected)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveArtifactsPublished(count int) {
	p.artifactsPublished.Observe(float64(count))
}

func (p *PrometheusRecorder) IncServeCacheHit() {
	p.serveCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncServeCacheMiss() {
	p.serveCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) IncPermissionDenied(action string) {
	p.permissionDenied.WithLabelValues(action).Inc()
}

func (p *PrometheusRecorder) IncBuildRejected() {
	p.buildRejected.Inc()
}
