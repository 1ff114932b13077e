// Package report holds the structured diagnostic taxonomy produced while
// building documents and the aggregated build report persisted after a run.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Code enumerates machine-parseable diagnostic identifiers.
// These codes are a stable contract and should only be appended (no reuse on removal).
// The leading letter encodes the severity: E = error, W = warning.
type Code string

const (
	CodeExitCode          Code = "EEX01" // tool reported failure per its success policy
	CodeNoTarget          Code = "EEX02" // declared output missing after run
	CodeTargetNotUpdated  Code = "EEX03" // declared output existed but was not updated
	CodeTargetUnreadable  Code = "WEX04" // modification time of a declared output unreadable
	CodeUpdateControl     Code = "WEX05" // freshness pause interrupted; update control may be wrong
	CodeSignatureDegraded Code = "WSIG01"
	CodeMustRunUnknown    Code = "WAUX01"
	CodeToolError         Code = "EAUX02"
	CodeToolWarning       Code = "WAUX03"
	CodeNotConverged      Code = "WCONV01"
	CodeLatexError        Code = "ELTX01"
	CodeLatexWarning      Code = "WLTX02"
	CodeBadBox            Code = "WLTX03"
	CodeLintFailed        Code = "ECHK01"
	CodeLintFinding       Code = "WCHK02"
	CodeArtifactDiffers   Code = "ECHK03"
)

// Severity represents normalized severity levels.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Severity derives the severity from the code prefix.
func (c Code) Severity() Severity {
	if strings.HasPrefix(string(c), "W") {
		return SeverityWarning
	}
	return SeverityError
}

// Diagnostic is a structured taxonomy entry describing a discrete problem encountered.
// Message is human-friendly; Code allows automated handling.
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Document string   `json:"document,omitempty"`
	Message  string   `json:"message"`
}

// New builds a diagnostic with the severity implied by code.
func New(code Code, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: code.Severity(), Message: fmt.Sprintf(format, args...)}
}

func (d Diagnostic) String() string {
	if d.Document != "" {
		return fmt.Sprintf("%s %s: %s", d.Code, d.Document, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Diagnostics accumulates diagnostics for one document. Safe for concurrent use.
type Diagnostics struct {
	mu       sync.Mutex
	document string
	items    []Diagnostic
	logger   *slog.Logger
}

// NewDiagnostics creates a collector whose entries are attributed to document.
func NewDiagnostics(document string) *Diagnostics {
	return &Diagnostics{document: document, logger: slog.Default()}
}

// WithLogger overrides the logger entries are mirrored to.
func (d *Diagnostics) WithLogger(l *slog.Logger) *Diagnostics {
	if l != nil {
		d.logger = l
	}
	return d
}

// Add records a new diagnostic.
func (d *Diagnostics) Add(code Code, format string, args ...any) {
	d.Append(New(code, format, args...))
}

// Append records already constructed diagnostics, attributing them to this
// collector's document when they carry none.
func (d *Diagnostics) Append(items ...Diagnostic) {
	if len(items) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range items {
		if it.Document == "" {
			it.Document = d.document
		}
		if it.Severity == "" {
			it.Severity = it.Code.Severity()
		}
		d.items = append(d.items, it)
		level := slog.LevelWarn
		if it.Severity == SeverityError {
			level = slog.LevelError
		}
		d.logger.LogAttrs(context.Background(), level, it.Message,
			logfields.Code(string(it.Code)), logfields.Document(it.Document))
	}
}

// All returns a copy of all recorded diagnostics in insertion order.
func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

// Errors returns the error-severity diagnostics.
func (d *Diagnostics) Errors() []Diagnostic { return d.filter(SeverityError) }

// Warnings returns the warning-severity diagnostics.
func (d *Diagnostics) Warnings() []Diagnostic { return d.filter(SeverityWarning) }

// HasErrors reports whether any error-severity diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool { return len(d.Errors()) > 0 }

// Count returns how many diagnostics carry code.
func (d *Diagnostics) Count(code Code) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, it := range d.items {
		if it.Code == code {
			n++
		}
	}
	return n
}

// Has reports whether at least one diagnostic carries code.
func (d *Diagnostics) Has(code Code) bool { return d.Count(code) > 0 }

func (d *Diagnostics) filter(s Severity) []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Diagnostic
	for _, it := range d.items {
		if it.Severity == s {
			out = append(out, it)
		}
	}
	return out
}
