package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad reads the input graph.
	StageLoad Stage = "load"
	// StageRebase rewrites generic gates.
	StageRebase Stage = "rebase"
	// StageInline flattens call sites.
	StageInline Stage = "inline"
	// StagePrune removes unreachable functions.
	StagePrune Stage = "prune"
	// StageEmit lowers the graph into a native module.
	StageEmit Stage = "emit"
	// StageAssign gives resource handles their static addresses.
	StageAssign Stage = "assign"
	// StageStamp attaches entry point attributes and module flags.
	StageStamp Stage = "stamp"
	// StageOptimize runs the pass sequence and the verifier.
	StageOptimize Stage = "optimize"
	// StageWrite encodes and writes the artifact.
	StageWrite Stage = "write"
)

// Stages lists the stages in execution order.
var Stages = []Stage{
	StageLoad, StageRebase, StageInline, StagePrune, StageEmit,
	StageAssign, StageStamp, StageOptimize, StageWrite,
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for an input file (or for the whole batch when
// File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Merge copies every duration recorded in other into t.
func (t *Timings) Merge(other Timings) {
	if t == nil {
		return
	}
	for stage, dur := range other.stages {
		t.Set(stage, dur)
	}
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}

// Total sums every recorded stage.
func (t Timings) Total() time.Duration {
	return t.Sum(Stages...)
}
