package auxiliary

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/logscan"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// Command is a configured external tool. An empty Name disables the tool.
type Command struct {
	Name string
	// Path is the directory holding the executable; empty means PATH lookup.
	Path string
	Args []string
}

// Enabled reports whether the command is configured.
func (c Command) Enabled() bool { return c.Name != "" }

// LogPatterns classify lines of a tool's log file. Nil patterns match nothing.
type LogPatterns struct {
	Error   *regexp.Regexp
	Warning *regexp.Regexp
}

// Toolchain carries everything needed to invoke auxiliary tools.
type Toolchain struct {
	Runner *process.Runner
	Logs   *logscan.Reader

	Bibtex         Command
	Makeindex      Command
	Splitindex     Command
	Makeglossaries Command
	Pythontex      Command

	BibtexLog    LogPatterns
	MakeindexLog LogPatterns
	GlossaryLog  LogPatterns

	// Timestamp is passed to every tool run when set.
	Timestamp *time.Time

	Logger *slog.Logger
}

// DefaultToolchain returns a toolchain with the standard tool names and log patterns.
func DefaultToolchain(runner *process.Runner) *Toolchain {
	mi := LogPatterns{
		Error:   logscan.MustCompile(logscan.MakeindexError),
		Warning: logscan.MustCompile(logscan.MakeindexWarning),
	}
	return &Toolchain{
		Runner:         runner,
		Logs:           &logscan.Reader{},
		Bibtex:         Command{Name: "bibtex"},
		Makeindex:      Command{Name: "makeindex"},
		Splitindex:     Command{Name: "splitindex", Args: []string{"-m", "makeindex"}},
		Makeglossaries: Command{Name: "makeglossaries"},
		Pythontex:      Command{Name: "pythontex"},
		BibtexLog: LogPatterns{
			Error:   logscan.MustCompile(logscan.BibtexError),
			Warning: logscan.MustCompile(logscan.BibtexWarning),
		},
		MakeindexLog: mi,
		GlossaryLog:  mi,
		Logger:       slog.Default(),
	}
}

type toolCall struct {
	cmd      Command
	args     []string
	outputs  []string
	log      string
	patterns LogPatterns
}

func bibtexCall(t *Toolchain, d *document.Descriptor) toolCall {
	return toolCall{
		cmd:      t.Bibtex,
		args:     []string{d.Base() + document.SuffixAux},
		outputs:  []string{d.Bbl()},
		log:      d.Blg(),
		patterns: t.BibtexLog,
	}
}

func makeindexCall(t *Toolchain, d *document.Descriptor) toolCall {
	call := toolCall{
		cmd:      t.Makeindex,
		args:     []string{d.Base() + document.SuffixIdx},
		outputs:  []string{d.Ind()},
		log:      d.Ilg(),
		patterns: t.MakeindexLog,
	}
	// splitindex writes one .ind per index; its outputs are not declared
	if t.Splitindex.Enabled() {
		if split, _ := fileMatches(d.Idx(), splitIndexEntry); split {
			call.cmd = t.Splitindex
			call.outputs = nil
		}
	}
	return call
}

func makeglossariesCall(t *Toolchain, d *document.Descriptor) toolCall {
	return toolCall{
		cmd:      t.Makeglossaries,
		args:     []string{d.Base()},
		outputs:  []string{d.Gls()},
		log:      d.Glg(),
		patterns: t.GlossaryLog,
	}
}

func pythontexCall(t *Toolchain, d *document.Descriptor) toolCall {
	return toolCall{cmd: t.Pythontex, args: []string{d.Base()}}
}

// Invoke runs the kind's tool in the document directory and reports whether
// it ran. Exit codes, output verification and the tool's log become
// diagnostics; only execution failures are returned as errors.
func (k Kind) Invoke(ctx context.Context, t *Toolchain, d *document.Descriptor, diags *report.Diagnostics) (bool, error) {
	call := k.def().invoke(t, d)
	logger := t.logger().With(logfields.Kind(k.String()), logfields.Document(d.Name()))
	if !call.cmd.Enabled() {
		logger.Debug("Auxiliary tool disabled; skipping")
		return false, nil
	}

	inv := process.Invocation{
		Dir:            d.Dir(),
		ExecutablePath: call.cmd.Path,
		Command:        call.cmd.Name,
		Args:           append(slices.Clone(call.cmd.Args), call.args...),
		Outputs:        call.outputs,
		Timestamp:      t.Timestamp,
	}
	logger.Info("Running auxiliary tool", logfields.Tool(call.cmd.Name))
	res, err := t.Runner.Run(ctx, inv)
	if err != nil {
		return false, err
	}
	diags.Append(res.Diagnostics...)
	if call.log != "" {
		t.scanLog(call.cmd.Name, call.log, call.patterns, diags)
	}
	return true, nil
}

func (t *Toolchain) scanLog(tool, path string, p LogPatterns, diags *report.Diagnostics) {
	if p.Error == nil && p.Warning == nil {
		return
	}
	content, err := t.Logs.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger().Warn("Cannot read tool log", logfields.Tool(tool), logfields.File(path), logfields.Error(err))
		}
		return
	}
	for _, line := range logscan.MatchingLines(content, p.Error) {
		diags.Add(report.CodeToolError, "%s reported an error: %s", tool, line)
	}
	for _, line := range logscan.MatchingLines(content, p.Warning) {
		diags.Add(report.CodeToolWarning, "%s reported a warning: %s", tool, line)
	}
}

func (t *Toolchain) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
