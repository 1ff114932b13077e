// Package check runs the optional quality checks on a document: chktex
// linting of the source and comparison of produced artifacts against
// reference copies.
package check

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	difflib "github.com/pmezard/go-difflib/difflib"

	"git.home.luguber.info/inful/texbuilder/internal/auxiliary"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// DefaultMaxDiffBytes caps the input size for which a unified diff is rendered.
const DefaultMaxDiffBytes = 256 * 1024

// Checker runs lint and diff tools.
type Checker struct {
	Runner   *process.Runner
	Chktex   auxiliary.Command
	DiffTool auxiliary.Command
	// MaxDiffBytes bounds unified diff rendering; 0 uses DefaultMaxDiffBytes.
	MaxDiffBytes int
	Logger       *slog.Logger
}

// Lint runs chktex on the document source. Each line chktex prints becomes
// a warning; exit code 1 means chktex itself failed.
func (c *Checker) Lint(ctx context.Context, d *document.Descriptor) ([]report.Diagnostic, error) {
	diags := report.NewDiagnostics(d.Name()).WithLogger(c.logger())
	if !c.Chktex.Enabled() {
		return nil, nil
	}
	res, err := c.Runner.Run(ctx, process.Invocation{
		Dir:            d.Dir(),
		ExecutablePath: c.Chktex.Path,
		Command:        c.Chktex.Name,
		Args:           append(slices.Clone(c.Chktex.Args), d.Name()),
		Policy:         process.ExactlyOne,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		// ECHK01 replaces the runner's generic EEX01 for the same exit.
		diags.Append(withoutCode(res.Diagnostics, report.CodeExitCode)...)
		diags.Add(report.CodeLintFailed, "%s failed with exit code %d", c.Chktex.Name, res.ExitCode)
		return diags.All(), nil
	}
	diags.Append(res.Diagnostics...)
	for _, line := range strings.Split(res.Output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		diags.Add(report.CodeLintFinding, "%s", line)
	}
	return diags.All(), nil
}

// Diff compares produced against reference. Exit code 1 means the files
// differ; for text files the unified diff is included in the message.
func (c *Checker) Diff(ctx context.Context, produced, reference string) ([]report.Diagnostic, error) {
	diags := report.NewDiagnostics(filepath.Base(produced)).WithLogger(c.logger())
	if !c.DiffTool.Enabled() {
		return nil, nil
	}
	res, err := c.Runner.Run(ctx, process.Invocation{
		Dir:            filepath.Dir(produced),
		ExecutablePath: c.DiffTool.Path,
		Command:        c.DiffTool.Name,
		Args:           append(slices.Clone(c.DiffTool.Args), produced, reference),
		Policy:         process.NotZeroOrOne,
	})
	if err != nil {
		return nil, err
	}
	diags.Append(res.Diagnostics...)
	if res.ExitCode == 1 {
		msg := produced + " differs from " + reference
		if patch := c.unified(produced, reference); patch != "" {
			msg += "\n" + patch
		}
		diags.Add(report.CodeArtifactDiffers, "%s", msg)
	}
	return diags.All(), nil
}

// DiffDocument compares the document's target against the file of the same
// name in referenceDir.
func (c *Checker) DiffDocument(ctx context.Context, d *document.Descriptor, format, referenceDir string) ([]report.Diagnostic, error) {
	target, err := d.Target(format)
	if err != nil {
		return nil, err
	}
	return c.Diff(ctx, target, filepath.Join(referenceDir, filepath.Base(target)))
}

func withoutCode(in []report.Diagnostic, code report.Code) []report.Diagnostic {
	out := make([]report.Diagnostic, 0, len(in))
	for _, d := range in {
		if d.Code != code {
			out = append(out, d)
		}
	}
	return out
}

func (c *Checker) unified(a, b string) string {
	limit := c.MaxDiffBytes
	if limit <= 0 {
		limit = DefaultMaxDiffBytes
	}
	da, err := os.ReadFile(a)
	if err != nil {
		return ""
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return ""
	}
	if len(da)+len(db) > limit || !isText(da) || !isText(db) {
		return ""
	}
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(da)),
		B:        difflib.SplitLines(string(db)),
		FromFile: a,
		ToFile:   b,
		Context:  3,
	})
	if err != nil {
		c.logger().Debug("Unified diff failed", logfields.File(a), logfields.Error(err))
		return ""
	}
	return s
}

func isText(b []byte) bool {
	return utf8.Valid(b) && !bytes.ContainsRune(b, 0)
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
