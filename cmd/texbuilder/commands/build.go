package commands

import (
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Lint        bool     `help:"Run chktex on each document after it converged"`
	Diff        bool     `help:"Compare each target against check.reference_dir"`
	Concurrency int      `short:"j" help:"Documents built in parallel (overrides build.concurrency)"`
	MaxReruns   *int     `name:"max-reruns" help:"Compiler rerun limit; -1 means unbounded"`
	NoReport    bool     `name:"no-report" help:"Do not write report files"`
	Documents   []string `arg:"" optional:"" help:"Main .tex files to build (default: configured documents)" type:"path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return err
	}
	docs, err := selectDocuments(cfg, b.Documents)
	if err != nil {
		return err
	}
	svcs, err := newServices(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, stop := signalContext()
	defer stop()

	res, err := svcs.service.Run(ctx, build.BuildRequest{
		Config:    cfg,
		Documents: docs,
		Options: build.BuildOptions{
			Lint:        b.Lint,
			Diff:        b.Diff,
			Concurrency: b.Concurrency,
			MaxReruns:   b.MaxReruns,
			SkipPersist: b.NoReport,
		},
	})
	if err != nil {
		return err
	}
	printReport(root.Stdout(), res)
	if res.Failed() {
		return errBuildFailed(res)
	}
	return nil
}

func printReport(w io.Writer, res *build.BuildResult) {
	for _, d := range res.Report.Documents {
		status := "ok"
		switch {
		case d.Failed():
			status = "FAILED"
		case !d.Converged:
			status = "not converged"
		}
		_, _ = fmt.Fprintf(w, "%-8s %s (%d compiler runs, %s)\n", status, d.Document, d.CompilerRuns, d.Duration.Round(time.Millisecond))
		for _, diag := range d.Diagnostics {
			_, _ = fmt.Fprintf(w, "    %s %s\n", diag.Code, diag.Message)
		}
	}
	_, _ = fmt.Fprintln(w, res.Report.Summary())
	if res.ReportDir != "" {
		_, _ = fmt.Fprintf(w, "Report written to %s\n", build.ReportPath(res.ReportDir))
	}
}
