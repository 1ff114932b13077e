// Package history records completed builds in a SQLite database so that
// past outcomes can be listed and inspected.
package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// Build is one recorded build.
type Build struct {
	ID        string
	Start     time.Time
	End       time.Time
	Outcome   report.BuildOutcome
	Documents int
	Errors    int
	Warnings  int
	Summary   string
}

// Document is one recorded document result.
type Document struct {
	BuildID      string
	Document     string
	Converged    bool
	CompilerRuns int
	Duration     time.Duration
	Failed       bool
	Error        string
}

// Store persists build reports.
type Store interface {
	Record(ctx context.Context, r *report.BuildReport) error
	Recent(ctx context.Context, limit int) ([]Build, error)
	Documents(ctx context.Context, buildID string) ([]Document, error)
	// Report returns the full stored report for buildID.
	Report(ctx context.Context, buildID string) (*report.BuildReport, error)
	Close() error
}
