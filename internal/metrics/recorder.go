// Package metrics defines the observability hooks recorded by the build
// pipeline and the serving path.
package metrics

import "time"

// Outcome labels for finished builds.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives pipeline and serving measurements. Implementations
// forward to Prometheus or drop them; callers never check which.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	ObserveArtifactsPublished(count int)
	IncServeCacheHit()
	IncServeCacheMiss()
	IncPermissionDenied(action string)
	IncBuildRejected() // trigger refused because a build was already in flight
}

// NoopRecorder is the default when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) ObserveArtifactsPublished(int)              {}
func (NoopRecorder) IncServeCacheHit()                          {}
func (NoopRecorder) IncServeCacheMiss()                         {}
func (NoopRecorder) IncPermissionDenied(string)                 {}
func (NoopRecorder) IncBuildRejected()                          {}
