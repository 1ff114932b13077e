package metrics

import "time"

// ResultLabel enumerates tool run result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for builds, documents and tool runs.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveDocumentDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|warning|failed|canceled
	IncDocumentOutcome(converged bool)
	IncCompilerRun()
	IncToolRun(kind string, result ResultLabel)
	IncDiagnostic(code string)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)    {}
func (NoopRecorder) ObserveDocumentDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)                {}
func (NoopRecorder) IncDocumentOutcome(bool)               {}
func (NoopRecorder) IncCompilerRun()                       {}
func (NoopRecorder) IncToolRun(string, ResultLabel)        {}
func (NoopRecorder) IncDiagnostic(string)                  {}
func (NoopRecorder) SetWorkers(int)                        {}
