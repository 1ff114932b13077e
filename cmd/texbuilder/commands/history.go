package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	List HistoryListCmd `cmd:"" default:"withargs" help:"List recent builds"`
	Show HistoryShowCmd `cmd:"" help:"Show the documents of one build"`
}

// HistoryListCmd implements 'history list'.
type HistoryListCmd struct {
	Limit int `short:"n" default:"20" help:"Number of builds to list"`
}

// HistoryShowCmd implements 'history show'.
type HistoryShowCmd struct {
	BuildID string `arg:"" name:"build-id" help:"Build identifier"`
}

func openHistory(g *Global, root *CLI) (*history.SQLiteStore, error) {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.ValidationFailed("history.enabled", "build history is disabled")
	}
	store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
	if err != nil {
		return nil, errors.FileSystemError("open build history", err)
	}
	return store, nil
}

func (h *HistoryListCmd) Run(g *Global, root *CLI) error {
	store, err := openHistory(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	builds, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(root.Stdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tOUTCOME\tDOCS\tERRORS\tWARNINGS")
	for _, b := range builds {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			b.ID, b.Start.Local().Format(time.DateTime), b.Outcome, b.Documents, b.Errors, b.Warnings)
	}
	return tw.Flush()
}

func (h *HistoryShowCmd) Run(g *Global, root *CLI) error {
	store, err := openHistory(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	rep, err := store.Report(ctx, h.BuildID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, errors.SeverityError, "unknown build").
			WithContext("build_id", h.BuildID)
	}
	out := root.Stdout()
	_, _ = fmt.Fprintf(out, "Build %s: %s\n", rep.BuildID, rep.Summary())
	for _, d := range rep.Documents {
		_, _ = fmt.Fprintf(out, "  %s converged=%t compiler_runs=%d\n", d.Document, d.Converged, d.CompilerRuns)
		for _, diag := range d.Diagnostics {
			_, _ = fmt.Fprintf(out, "    %s %s\n", diag.Code, diag.Message)
		}
	}
	return nil
}
