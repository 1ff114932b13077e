package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/texbuilder/internal/check"
	"git.home.luguber.info/inful/texbuilder/internal/convergence"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/events"
	"git.home.luguber.info/inful/texbuilder/internal/history"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/observability"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	"git.home.luguber.info/inful/texbuilder/internal/report"
	"git.home.luguber.info/inful/texbuilder/internal/timestamp"
)

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	runnerFactory func(logger *slog.Logger) *process.Runner
	recorder      metrics.Recorder
	publisher     events.Publisher
	history       history.Store
	newID         func() string
	logger        *slog.Logger
}

// NewBuildService creates a service with no metrics, events or history.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		runnerFactory: func(l *slog.Logger) *process.Runner {
			return process.NewRunner(process.WithLogger(l))
		},
		recorder:  metrics.NoopRecorder{},
		publisher: events.Noop{},
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
}

// WithRunnerFactory allows injecting a custom process runner (for testing).
func (s *DefaultBuildService) WithRunnerFactory(f func(logger *slog.Logger) *process.Runner) *DefaultBuildService {
	if f != nil {
		s.runnerFactory = f
	}
	return s
}

// WithRecorder allows injection of a metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithPublisher sets the event publisher.
func (s *DefaultBuildService) WithPublisher(p events.Publisher) *DefaultBuildService {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithHistory sets the store completed builds are recorded in.
func (s *DefaultBuildService) WithHistory(h history.Store) *DefaultBuildService {
	s.history = h
	return s
}

// WithIDGenerator overrides build ID generation (for testing).
func (s *DefaultBuildService) WithIDGenerator(f func() string) *DefaultBuildService {
	if f != nil {
		s.newID = f
	}
	return s
}

// WithLogger sets the base logger.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	if l != nil {
		s.logger = l
	}
	return s
}

// Run executes the build: resolve documents and timestamp, converge each
// document on the worker pool, then persist and publish the report.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	if req.Config == nil {
		s.recorder.IncBuildOutcome(string(report.OutcomeFailed))
		return nil, errors.ConfigRequired("config")
	}
	cfg := req.Config

	buildID := s.newID()
	ctx = observability.WithBuildID(ctx, buildID)
	logger := observability.Logger(ctx, s.logger)
	result := &BuildResult{BuildID: buildID}

	docs := req.Documents
	if docs == nil {
		var err error
		if docs, err = ResolveDocuments(cfg); err != nil {
			s.recorder.IncBuildOutcome(string(report.OutcomeFailed))
			return nil, errors.Wrap(err, errors.CategoryBuild, errors.SeverityFatal, "failed to resolve documents")
		}
	}
	if len(docs) == 0 {
		logger.Warn("No documents to build", logfields.Path(cfg.Resolve(cfg.Documents.Root)))
	}

	ts, err := timestamp.Resolve(cfg.Build.Timestamp, cfg.Build.TimestampValue, cfg.Resolve(cfg.Documents.Root))
	if err != nil {
		s.recorder.IncBuildOutcome(string(report.OutcomeFailed))
		return nil, fmt.Errorf("%w: %w", ErrTimestamp, err)
	}
	result.Timestamp = ts

	runner := s.runnerFactory(logger)
	tools, err := cfg.Toolchain(runner, logger)
	if err != nil {
		s.recorder.IncBuildOutcome(string(report.OutcomeFailed))
		return nil, fmt.Errorf("%w: %w", ErrToolchain, err)
	}
	tools.Timestamp = ts
	patterns, err := cfg.LogPatterns()
	if err != nil {
		s.recorder.IncBuildOutcome(string(report.OutcomeFailed))
		return nil, fmt.Errorf("%w: %w", ErrToolchain, err)
	}
	driver := convergence.NewDriver(tools, cfg.Compiler()).
		WithFormat(cfg.Build.Target).
		WithLogPatterns(patterns).
		WithRecorder(s.recorder).
		WithLogger(logger)
	checker := &check.Checker{
		Runner:   runner,
		Chktex:   cfg.Tools.Chktex.ToCommand(),
		DiffTool: cfg.Tools.Diff.ToCommand(),
		Logger:   logger,
	}

	maxReruns := cfg.MaxReruns()
	if req.Options.MaxReruns != nil {
		maxReruns = *req.Options.MaxReruns
	}
	concurrency := cfg.Build.Concurrency
	if req.Options.Concurrency > 0 {
		concurrency = req.Options.Concurrency
	}
	s.recorder.SetWorkers(min(max(concurrency, 1), max(len(docs), 1)))

	rep := report.NewBuildReport(buildID)
	rep.Start = start
	s.publish(ctx, events.Event{Type: events.BuildStarted, BuildID: buildID, Documents: len(docs)})
	logger.Info("Build started",
		slog.Int("documents", len(docs)),
		slog.Int("concurrency", concurrency),
		slog.Int("max_reruns", maxReruns))

	results := runOrdered(docs, concurrency, func(_ int, d *document.Descriptor) (*convergence.Outcome, error) {
		dctx := observability.WithDocument(ctx, d.Name())
		if err := dctx.Err(); err != nil {
			return nil, err
		}
		out, err := driver.Build(dctx, d, maxReruns)
		if err != nil {
			return nil, err
		}
		if req.Options.Lint {
			diags, lerr := checker.Lint(dctx, d)
			if lerr != nil {
				return out, lerr
			}
			out.Diagnostics = append(out.Diagnostics, diags...)
		}
		if req.Options.Diff && cfg.Check.ReferenceDir != "" {
			refDir := cfg.Resolve(cfg.Check.ReferenceDir)
			diags, derr := checker.DiffDocument(dctx, d, cfg.Build.Target, refDir)
			if derr != nil {
				return out, derr
			}
			out.Diagnostics = append(out.Diagnostics, diags...)
		}
		return out, nil
	})

	result.Outcomes = make([]*convergence.Outcome, len(docs))
	for i, r := range results {
		var dr report.DocumentReport
		if r.Value != nil {
			dr = r.Value.Report()
			result.Outcomes[i] = r.Value
		} else {
			dr = report.DocumentReport{Document: docs[i].Tex()}
		}
		if r.Err != nil {
			dr.Error = r.Err.Error()
			if tbe, ok := errors.As(r.Err); ok {
				dr.ErrorCode = tbe.Code
			}
			observability.Logger(observability.WithDocument(ctx, docs[i].Name()), logger).
				Error("Document build aborted", logfields.Error(r.Err))
		}
		rep.AddDocument(dr)
		ev := dr
		s.publish(ctx, events.Event{Type: events.DocumentFinished, BuildID: buildID, Document: &ev})
	}
	rep.Canceled = ctx.Err() != nil
	rep.Finish()

	result.Report = rep
	result.Duration = rep.End.Sub(rep.Start)
	s.recorder.ObserveBuildDuration(result.Duration)
	s.recorder.IncBuildOutcome(string(rep.Outcome))

	if !req.Options.SkipPersist {
		dir := cfg.Resolve(cfg.Build.ReportDir)
		if err := rep.Persist(dir); err != nil {
			logger.Warn("Failed to persist build report", logfields.Path(dir), logfields.Error(err))
		} else {
			result.ReportDir = dir
		}
	}
	if s.history != nil {
		// record even when the build context was canceled
		hctx := context.WithoutCancel(ctx)
		if err := s.history.Record(hctx, rep); err != nil {
			logger.Warn("Failed to record build history", logfields.Error(err))
		}
	}
	s.publish(ctx, events.Event{
		Type:      events.BuildFinished,
		BuildID:   buildID,
		Documents: len(docs),
		Outcome:   rep.Outcome,
		Summary:   rep.Summary(),
	})
	logger.Info("Build finished", slog.String("summary", rep.Summary()))
	return result, nil
}

func (s *DefaultBuildService) publish(ctx context.Context, ev events.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		observability.Logger(ctx, s.logger).Warn("Failed to publish build event",
			slog.String("type", string(ev.Type)), logfields.Error(err))
	}
}

// ReportPath returns the JSON report path inside dir.
func ReportPath(dir string) string {
	return filepath.Join(dir, "build-report.json")
}
