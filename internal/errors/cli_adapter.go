package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Process exit codes of the texbuilder CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1  // unclassified error
	ExitUsage       = 2  // invalid flags or arguments
	ExitBuildFailed = 3  // at least one document failed or the build was canceled
	ExitTool        = 4  // a tool could not be started or awaited
	ExitConfig      = 7  // configuration missing or invalid
	ExitInternal    = 10 // bug
	ExitFileSystem  = 11 // reports, history or sources not accessible
)

// CLIErrorAdapter turns errors returned by commands into a message on
// stderr and a process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// WithOutput redirects user-facing messages and replaces os.Exit; for tests.
func (a *CLIErrorAdapter) WithOutput(w io.Writer, exit func(int)) *CLIErrorAdapter {
	a.out = w
	a.exit = exit
	return a
}

// ExitCodeFor determines the exit code for err.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	tbe, ok := As(err)
	if !ok {
		return ExitFailure
	}
	switch tbe.Category {
	case CategoryValidation:
		return ExitUsage
	case CategoryConfig:
		return ExitConfig
	case CategoryBuild:
		return ExitBuildFailed
	case CategoryProcess:
		return ExitTool
	case CategoryFileSystem:
		return ExitFileSystem
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitFailure
	}
}

// FormatError renders err for the terminal. Non-verbose output omits the
// cause chain but keeps context such as the build id or document.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	tbe, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return tbe.Error() + formatContext(tbe.Context)
	}
	switch tbe.Category {
	case CategoryConfig, CategoryValidation:
		return tbe.Message
	case CategoryBuild:
		return tbe.Message + formatContext(tbe.Context)
	default:
		if tbe.Code != "" {
			return fmt.Sprintf("%s: %s: %s", tbe.Category, tbe.Code, tbe.Message)
		}
		return fmt.Sprintf("%s: %s", tbe.Category, tbe.Message)
	}
}

// formatContext renders context as " (k=v, ...)" in key order.
func formatContext(ctx ContextFields) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, ctx[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// HandleError prints err and exits. A nil error returns without exiting.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

// A failed build has already reported its diagnostics; only log what the
// user has not seen.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if tbe, ok := As(err); ok {
		return tbe.Category == CategoryInternal || tbe.Category == CategoryProcess || tbe.Severity == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	tbe, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(tbe.Category))}
	if tbe.Code != "" {
		attrs = append(attrs, slog.String("code", tbe.Code))
	}
	if tbe.Cause != nil {
		attrs = append(attrs, slog.String("cause", tbe.Cause.Error()))
	}
	for k, v := range tbe.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), slogLevelFromSeverity(tbe.Severity), tbe.Message, attrs...)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
