package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Outcome is the final status of one document compilation.
type Outcome string

const (
	OutcomeCompiled Outcome = "compiled"
	OutcomeCached   Outcome = "cached"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder defines observability hooks for the compile pipeline.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveCompileDuration(d time.Duration)
	IncCompileOutcome(outcome Outcome)
	AddDiagnostics(level string, n int)
	ObservePartials(n int)
	SetSchemaSlots(state string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveCompileDuration(time.Duration)       {}
func (NoopRecorder) IncCompileOutcome(Outcome)                  {}
func (NoopRecorder) AddDiagnostics(string, int)                 {}
func (NoopRecorder) ObservePartials(int)                        {}
func (NoopRecorder) SetSchemaSlots(string, int)                 {}

// Or returns r, or NoopRecorder when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
