package commands

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/texbuilder/internal/check"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// LintCmd implements the 'lint' command.
type LintCmd struct {
	Documents []string `arg:"" optional:"" help:"Main .tex files to lint (default: configured documents)" type:"path"`
}

func (l *LintCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return err
	}
	docs, err := selectDocuments(cfg, l.Documents)
	if err != nil {
		return err
	}
	checker := newChecker(cfg, g)
	if !checker.Chktex.Enabled() {
		return errors.ConfigRequired("tools.chktex")
	}
	ctx, stop := signalContext()
	defer stop()

	var all []report.Diagnostic
	for _, d := range docs {
		diags, err := checker.Lint(ctx, d)
		if err != nil {
			return err
		}
		all = append(all, diags...)
	}
	return printDiagnostics(root.Stdout(), all)
}

// DiffCmd implements the 'diff' command.
type DiffCmd struct {
	Produced  string `arg:"" help:"Produced artifact" type:"existingfile"`
	Reference string `arg:"" help:"Reference artifact" type:"existingfile"`
}

func (c *DiffCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return err
	}
	checker := newChecker(cfg, g)
	if !checker.DiffTool.Enabled() {
		return errors.ConfigRequired("tools.diff")
	}
	ctx, stop := signalContext()
	defer stop()

	diags, err := checker.Diff(ctx, c.Produced, c.Reference)
	if err != nil {
		return err
	}
	return printDiagnostics(root.Stdout(), diags)
}

func newChecker(cfg *config.Config, g *Global) *check.Checker {
	return &check.Checker{
		Runner:   process.NewRunner(process.WithLogger(g.Logger)),
		Chktex:   cfg.Tools.Chktex.ToCommand(),
		DiffTool: cfg.Tools.Diff.ToCommand(),
		Logger:   g.Logger,
	}
}

// printDiagnostics writes one line per diagnostic and fails if any is an error.
func printDiagnostics(w io.Writer, diags []report.Diagnostic) error {
	errs := 0
	for _, d := range diags {
		_, _ = fmt.Fprintln(w, d.String())
		if d.Severity == report.SeverityError {
			errs++
		}
	}
	if errs > 0 {
		return errors.New(errors.CategoryBuild, errors.SeverityError,
			fmt.Sprintf("%d check error(s)", errs))
	}
	return nil
}
