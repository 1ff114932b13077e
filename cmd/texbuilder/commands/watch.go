package commands

import (
	"git.home.luguber.info/inful/texbuilder/internal/build"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Lint bool `help:"Run chktex after each rebuild"`
	Diff bool `help:"Compare targets against check.reference_dir after each rebuild"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return err
	}
	svcs, err := newServices(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer svcs.Close()

	w, err := watch.New(cfg, svcs.service, build.BuildOptions{Lint: c.Lint, Diff: c.Diff})
	if err != nil {
		return err
	}
	w.WithLogger(g.Logger)
	if svcs.registry != nil {
		w.WithMetricsHandler(metrics.HTTPHandler(svcs.registry))
	}
	out := root.Stdout()
	w.OnBuild(func(res *build.BuildResult, err error) {
		if err == nil && res != nil {
			printReport(out, res)
		}
	})

	ctx, stop := signalContext()
	defer stop()
	return w.Run(ctx)
}
