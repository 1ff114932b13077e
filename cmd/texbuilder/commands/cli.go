// Package commands implements the texbuilder subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/texbuilder/internal/build"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/events"
	"git.home.luguber.info/inful/texbuilder/internal/history"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "TEXBUILDER_LOG_LEVEL"

// Global is passed to every subcommand's Run method.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"texbuilder.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build documents until their auxiliary files converge"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild documents when sources change"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Discover DiscoverCmd `cmd:"" help:"List the main documents that would be built"`
	Lint     LintCmd     `cmd:"" help:"Run chktex on each document"`
	Diff     DiffCmd     `cmd:"" help:"Compare two artifacts and report differences"`
	History  HistoryCmd  `cmd:"" help:"Show recorded builds"`

	out io.Writer
}

// AfterApply runs after flag parsing; sets up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose, "")}))
	slog.SetDefault(logger)
	return nil
}

// Stdout returns the writer user-facing output goes to.
func (c *CLI) Stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

// parseLogLevel resolves the log level: --verbose, then TEXBUILDER_LOG_LEVEL,
// then the configured level.
func parseLogLevel(verbose bool, configured string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	name := os.Getenv(EnvLogLevel)
	if name == "" {
		name = configured
	}
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads the configuration and reconfigures logging from it.
func loadConfig(root *CLI, g *Global) (*config.Config, error) {
	cfg, res, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: parseLogLevel(root.Verbose, cfg.Logging.Level)}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	g.Logger = logger
	for _, w := range res.Warnings {
		logger.Warn("Configuration normalized", slog.String("detail", w))
	}
	return cfg, nil
}

// services bundles the optional collaborators of a build service.
type services struct {
	service  *build.DefaultBuildService
	registry *prom.Registry
	closers  []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// newServices wires metrics, events and history according to cfg.
func newServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	s := &services{service: build.NewBuildService().WithLogger(logger)}
	if cfg.Metrics.Enabled {
		s.registry = prom.NewRegistry()
		s.service.WithRecorder(metrics.NewPrometheusRecorder(s.registry))
	}
	if cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject, logger)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to connect event publisher")
		}
		s.service.WithPublisher(pub)
		s.closers = append(s.closers, pub.Close)
	}
	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
		if err != nil {
			s.Close()
			return nil, errors.FileSystemError("open build history", err)
		}
		s.service.WithHistory(store)
		s.closers = append(s.closers, store.Close)
	}
	return s, nil
}

// errBuildFailed is returned when a build completed but failed.
func errBuildFailed(res *build.BuildResult) error {
	return errors.New(errors.CategoryBuild, errors.SeverityError,
		fmt.Sprintf("build %s", res.Report.Outcome)).WithContext("build_id", res.BuildID)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
