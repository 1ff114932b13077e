package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/convergence"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// BuildService is the canonical interface for building documents.
type BuildService interface {
	// Run builds every requested document and returns the aggregate result.
	// Document failures are reported in the result; the error is reserved
	// for failures that prevent the build from starting.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a build.
type BuildRequest struct {
	Config *config.Config

	// Documents restricts the build; nil resolves them from Config.
	Documents []*document.Descriptor

	Options BuildOptions
}

// BuildOptions provides optional configuration for build behavior.
type BuildOptions struct {
	// Lint runs chktex on each document after it converged.
	Lint bool
	// Diff compares each target against check.reference_dir.
	Diff bool
	// Concurrency overrides build.concurrency when positive.
	Concurrency int
	// MaxReruns overrides build.max_reruns when non-nil.
	MaxReruns *int
	// SkipPersist disables writing the report files.
	SkipPersist bool
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	BuildID string
	Report  *report.BuildReport
	// Outcomes are in request order; nil where a document aborted.
	Outcomes []*convergence.Outcome
	// ReportDir is where the report files were written, if anywhere.
	ReportDir string
	Timestamp *time.Time
	Duration  time.Duration
}

// Failed reports whether any document failed or the build was canceled.
func (r *BuildResult) Failed() bool {
	if r == nil || r.Report == nil {
		return true
	}
	return r.Report.Outcome == report.OutcomeFailed || r.Report.Outcome == report.OutcomeCanceled
}
