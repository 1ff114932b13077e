package convergence

import (
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/auxiliary"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// State is the per-kind, per-iteration check result.
type State int

const (
	// NotNeeded: trigger file missing or must-run predicate false.
	NotNeeded State = iota
	// Unchanged: needed, but the relevant content matches the last signature.
	Unchanged
	// Changed: needed and the signature is new or differs.
	Changed
	// Invoked: the tool ran.
	Invoked
	// Verified: the tool ran without error diagnostics.
	Verified
)

func (s State) String() string {
	switch s {
	case NotNeeded:
		return "not-needed"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Invoked:
		return "invoked"
	case Verified:
		return "verified"
	}
	return "unknown"
}

// Transition records one state reached by a kind in an iteration.
// Iteration 0 follows the first compiler run.
type Transition struct {
	Iteration int
	Kind      auxiliary.Kind
	State     State
}

// Outcome summarizes one document build.
type Outcome struct {
	Document     string
	Converged    bool
	CompilerRuns int
	ToolRuns     map[auxiliary.Kind]int
	Transitions  []Transition
	Diagnostics  []report.Diagnostic
	Duration     time.Duration
}

// Success reports whether no error diagnostic was recorded.
func (o *Outcome) Success() bool {
	for _, d := range o.Diagnostics {
		if d.Severity == report.SeverityError {
			return false
		}
	}
	return true
}

// States returns the states reached by kind in iteration, in order.
func (o *Outcome) States(iteration int, kind auxiliary.Kind) []State {
	var out []State
	for _, t := range o.Transitions {
		if t.Iteration == iteration && t.Kind == kind {
			out = append(out, t.State)
		}
	}
	return out
}

// Report converts the outcome into its build report form.
func (o *Outcome) Report() report.DocumentReport {
	runs := make(map[string]int, len(o.ToolRuns))
	for k, n := range o.ToolRuns {
		runs[k.String()] = n
	}
	return report.DocumentReport{
		Document:     o.Document,
		Converged:    o.Converged,
		CompilerRuns: o.CompilerRuns,
		ToolRuns:     runs,
		Diagnostics:  o.Diagnostics,
		Duration:     o.Duration,
	}
}
