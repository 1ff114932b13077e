package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// DocumentReport is the per-document slice of a build report.
type DocumentReport struct {
	Document     string         `json:"document"`
	Converged    bool           `json:"converged"`
	CompilerRuns int            `json:"compiler_runs"`
	ToolRuns     map[string]int `json:"tool_runs"`
	Diagnostics  []Diagnostic   `json:"diagnostics"`
	Duration     time.Duration  `json:"duration"`
	// Error is set when the document aborted before a report could be built.
	Error        string         `json:"error,omitempty"`
	// ErrorCode is the code carried by the aborting error, if any.
	ErrorCode    string         `json:"error_code,omitempty"`
}

// Failed reports whether the document aborted or produced error diagnostics.
func (d DocumentReport) Failed() bool {
	if d.Error != "" {
		return true
	}
	for _, diag := range d.Diagnostics {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d DocumentReport) hasWarnings() bool {
	for _, diag := range d.Diagnostics {
		if diag.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// BuildReport captures the result of one build over a set of documents.
type BuildReport struct {
	SchemaVersion int              `json:"schema_version"`
	BuildID       string           `json:"build_id"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	Documents     []DocumentReport `json:"documents"`
	Outcome       BuildOutcome     `json:"outcome"`
	Canceled      bool             `json:"canceled,omitempty"`
}

// NewBuildReport starts a report for the given build.
func NewBuildReport(buildID string) *BuildReport {
	return &BuildReport{SchemaVersion: 1, BuildID: buildID, Start: time.Now()}
}

// AddDocument appends a document result.
func (r *BuildReport) AddDocument(d DocumentReport) {
	r.Documents = append(r.Documents, d)
}

// Finish stamps the end time and derives the outcome.
func (r *BuildReport) Finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

func (r *BuildReport) deriveOutcome() {
	if r.Canceled {
		r.Outcome = OutcomeCanceled
		return
	}
	warn := false
	for _, d := range r.Documents {
		if d.Failed() {
			r.Outcome = OutcomeFailed
			return
		}
		warn = warn || d.hasWarnings()
	}
	if warn {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Counts returns the number of error and warning diagnostics over all documents.
func (r *BuildReport) Counts() (errs, warns int) {
	for _, d := range r.Documents {
		if d.Error != "" {
			errs++
		}
		for _, diag := range d.Diagnostics {
			switch diag.Severity {
			case SeverityError:
				errs++
			case SeverityWarning:
				warns++
			}
		}
	}
	return errs, warns
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	errs, warns := r.Counts()
	converged := 0
	for _, d := range r.Documents {
		if d.Converged {
			converged++
		}
	}
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("build=%s documents=%d converged=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.BuildID, len(r.Documents), converged, dur.Truncate(time.Millisecond), errs, warns, r.Outcome)
}

// Persist writes the report atomically into dir.
// It writes two files:
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary plus one line per diagnostic)
//
// Best effort; errors are returned for caller logging but do not change the build outcome.
func (r *BuildReport) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir for report: %w", err)
	}
	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build-report.json"), jb); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.text())); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}
	return nil
}

func (r *BuildReport) text() string {
	out := r.Summary() + "\n"
	for _, d := range r.Documents {
		if d.Error != "" {
			label := d.ErrorCode
			if label == "" {
				label = "ERROR"
			}
			out += fmt.Sprintf("%s %s: %s\n", label, d.Document, d.Error)
		}
		for _, diag := range d.Diagnostics {
			out += diag.String() + "\n"
		}
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
