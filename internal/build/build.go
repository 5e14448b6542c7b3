// Package build persists Build records: one per pipeline execution, never
// deleted, carrying captured output and a per-project sequence number.
package build

import (
	"time"
)

// Status is the lifecycle state of a Build. A build is created UNKNOWN and
// transitions exactly once to SUCCESS or FAILURE.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailure }

// Build records one pipeline execution for a project.
type Build struct {
	ID       string // uuid, assigned at creation
	Owner    string
	Project  string
	Seq      int64 // 1 + max(previous seqs for this project), immutable
	Status   Status
	Output   string // captured combined stdout/stderr, appended incrementally
	WorkDir  string
	Started  time.Time
	Finished time.Time // zero until terminal
}
