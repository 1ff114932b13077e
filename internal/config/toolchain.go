package config

import (
	"log/slog"
	"regexp"

	"git.home.luguber.info/inful/texbuilder/internal/auxiliary"
	"git.home.luguber.info/inful/texbuilder/internal/convergence"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logscan"
	"git.home.luguber.info/inful/texbuilder/internal/process"
)

// ToCommand converts a tool entry. Disabled tools yield the zero Command.
func (t ToolConfig) ToCommand() auxiliary.Command {
	if t.Disabled {
		return auxiliary.Command{}
	}
	return auxiliary.Command{Name: t.Command, Path: t.Path, Args: append([]string(nil), t.Args...)}
}

// Compiler returns the configured LaTeX compiler.
func (c *Config) Compiler() auxiliary.Command {
	return c.Tools.Latex.ToCommand()
}

// MaxReruns returns the configured rerun bound.
func (c *Config) MaxReruns() int {
	if c.Build.MaxReruns == nil {
		return convergence.DefaultMaxReruns
	}
	return *c.Build.MaxReruns
}

// Toolchain assembles the auxiliary toolchain described by the configuration.
func (c *Config) Toolchain(runner *process.Runner, logger *slog.Logger) (*auxiliary.Toolchain, error) {
	tc := auxiliary.DefaultToolchain(runner)
	if logger != nil {
		tc.Logger = logger
	}
	reader, err := logscan.NewReader(c.LogEncoding)
	if err != nil {
		return nil, errors.ValidationFailed("log_encoding", err.Error())
	}
	tc.Logs = reader

	tc.Bibtex = c.Tools.Bibtex.ToCommand()
	tc.Makeindex = c.Tools.Makeindex.ToCommand()
	tc.Splitindex = c.Tools.Splitindex.ToCommand()
	tc.Makeglossaries = c.Tools.Makeglossaries.ToCommand()
	tc.Pythontex = c.Tools.Pythontex.ToCommand()

	p := c.Patterns
	overrides := []struct {
		field string
		expr  string
		dst   **regexp.Regexp
	}{
		{"patterns.bibtex_error", p.BibtexError, &tc.BibtexLog.Error},
		{"patterns.bibtex_warning", p.BibtexWarning, &tc.BibtexLog.Warning},
		{"patterns.makeindex_error", p.MakeindexError, &tc.MakeindexLog.Error},
		{"patterns.makeindex_warning", p.MakeindexWarning, &tc.MakeindexLog.Warning},
		{"patterns.glossary_error", p.GlossaryError, &tc.GlossaryLog.Error},
		{"patterns.glossary_warning", p.GlossaryWarning, &tc.GlossaryLog.Warning},
	}
	for _, o := range overrides {
		if err := override(o.field, o.expr, o.dst); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// LogPatterns returns the compiler log patterns with overrides applied.
// Bad boxes and warnings are dropped when disabled.
func (c *Config) LogPatterns() (convergence.LogPatterns, error) {
	lp := convergence.DefaultLogPatterns()
	p := c.Patterns
	for field, o := range map[string]struct {
		expr string
		dst  **regexp.Regexp
	}{
		"patterns.latex_rerun":   {p.LatexRerun, &lp.Rerun},
		"patterns.latex_error":   {p.LatexError, &lp.Error},
		"patterns.latex_warning": {p.LatexWarning, &lp.Warning},
		"patterns.latex_bad_box": {p.LatexBadBox, &lp.BadBox},
	} {
		if err := override(field, o.expr, o.dst); err != nil {
			return convergence.LogPatterns{}, err
		}
	}
	if c.Build.BadBoxes != nil && !*c.Build.BadBoxes {
		lp.BadBox = nil
	}
	if c.Build.Warnings != nil && !*c.Build.Warnings {
		lp.Warning = nil
	}
	return lp, nil
}

func override(field, expr string, dst **regexp.Regexp) error {
	if expr == "" {
		return nil
	}
	re, err := logscan.Compile(expr)
	if err != nil {
		return errors.ValidationFailed(field, err.Error())
	}
	*dst = re
	return nil
}
