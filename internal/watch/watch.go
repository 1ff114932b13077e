// Package watch rebuilds documents when their sources change, and on a
// cron schedule when one is configured.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/texbuilder/internal/build"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Watcher owns the watch loop. Rebuilds run one at a time.
type Watcher struct {
	cfg      *config.Config
	service  build.BuildService
	options  build.BuildOptions
	root     string
	reports  string
	debounce time.Duration
	metrics  http.Handler
	onBuild  func(*build.BuildResult, error)
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	changed map[string]struct{}
	full    bool
	rebuild chan struct{}
	// docs are the documents of the last resolution; their derived files
	// are never sources.
	docs    []*document.Descriptor
}

// New creates a watcher for the documents selected by cfg.
func New(cfg *config.Config, service build.BuildService, opts build.BuildOptions) (*Watcher, error) {
	debounce, err := time.ParseDuration(cfg.Watch.Debounce)
	if err != nil {
		return nil, fmt.Errorf("watch debounce: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		service:  service,
		options:  opts,
		root:     cfg.Resolve(cfg.Documents.Root),
		reports:  cfg.Resolve(cfg.Build.ReportDir),
		debounce: debounce,
		logger:   slog.Default(),
		changed:  make(map[string]struct{}),
		rebuild:  make(chan struct{}, 1),
	}
	if docs, err := build.ResolveDocuments(cfg); err == nil {
		w.docs = docs
	}
	return w, nil
}

// WithMetricsHandler serves h on metrics.listen while watching.
func (w *Watcher) WithMetricsHandler(h http.Handler) *Watcher {
	w.metrics = h
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// OnBuild registers a callback invoked after every build.
func (w *Watcher) OnBuild(f func(*build.BuildResult, error)) *Watcher {
	w.onBuild = f
	return w
}

// Run performs an initial build, then watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()
	if err := w.addDirsRecursive(fsw, w.root); err != nil {
		return err
	}

	if w.cfg.Watch.RebuildSchedule != "" {
		s, err := w.startScheduler()
		if err != nil {
			return err
		}
		defer func() { _ = s.Shutdown() }()
	}
	if w.metrics != nil && w.cfg.Metrics.Enabled {
		srv := w.startMetricsServer()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	w.requestFull()
	w.logger.Info("Watching for changes", logfields.Path(w.root), slog.Duration("debounce", w.debounce))
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			wg.Wait()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				wg.Wait()
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				wg.Wait()
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rebuild:
			paths, full := w.drain()
			w.runBuild(ctx, paths, full)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, paths []string, full bool) {
	req := build.BuildRequest{Config: w.cfg, Options: w.options}
	docs, err := build.ResolveDocuments(w.cfg)
	if err != nil {
		w.finish(nil, err)
		return
	}
	w.mu.Lock()
	w.docs = docs
	w.mu.Unlock()
	if !full {
		req.Documents = Affected(docs, paths)
	}
	w.logger.Info("Rebuilding", slog.Bool("full", full), slog.Int("changed", len(paths)))
	res, err := w.service.Run(ctx, req)
	w.finish(res, err)
}

func (w *Watcher) finish(res *build.BuildResult, err error) {
	switch {
	case err != nil:
		w.logger.Error("Rebuild failed", logfields.Error(err))
	case res != nil && res.Report != nil:
		w.logger.Info("Rebuild finished", slog.String("summary", res.Report.Summary()))
	}
	if w.onBuild != nil {
		w.onBuild(res, err)
	}
}

// Affected returns the documents whose directory contains one of paths.
// A change outside every document directory affects all documents.
func Affected(docs []*document.Descriptor, paths []string) []*document.Descriptor {
	var out []*document.Descriptor
	for _, d := range docs {
		prefix := d.Dir() + string(filepath.Separator)
		if slices.ContainsFunc(paths, func(p string) bool { return strings.HasPrefix(p, prefix) }) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return docs
	}
	return out
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !w.skipDir(ev.Name) {
				_ = w.addDirsRecursive(fsw, ev.Name)
			}
			return
		}
	}
	if !w.relevant(ev.Name) {
		return
	}
	w.logger.Debug("Source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.requestPath(ev.Name)
}

func (w *Watcher) relevant(path string) bool {
	if shouldIgnore(path) || strings.HasPrefix(path, w.reports+string(filepath.Separator)) {
		return false
	}
	if !slices.Contains(w.cfg.Watch.Extensions, filepath.Ext(path)) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !slices.ContainsFunc(w.docs, func(d *document.Descriptor) bool { return d.IsDerived(path) })
}

func (w *Watcher) requestPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.signal)
}

func (w *Watcher) requestFull() {
	w.mu.Lock()
	w.full = true
	w.mu.Unlock()
	w.signal()
}

func (w *Watcher) signal() {
	select {
	case w.rebuild <- struct{}{}:
	default:
	}
}

func (w *Watcher) drain() ([]string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.changed))
	for p := range w.changed {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	full := w.full
	w.changed = make(map[string]struct{})
	w.full = false
	return paths, full
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) startScheduler() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.CronJob(w.cfg.Watch.RebuildSchedule, false),
		gocron.NewTask(w.requestFull),
		gocron.WithName("scheduled-rebuild"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled rebuild job: %w", err)
	}
	s.Start()
	w.logger.Info("Scheduled full rebuilds", slog.String("schedule", w.cfg.Watch.RebuildSchedule))
	return s, nil
}

func (w *Watcher) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle(w.cfg.Metrics.Path, w.metrics)
	srv := &http.Server{Addr: w.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	w.logger.Info("Serving metrics", slog.String("listen", w.cfg.Metrics.Listen), logfields.Path(w.cfg.Metrics.Path))
	return srv
}

func (w *Watcher) skipDir(path string) bool {
	base := filepath.Base(path)
	return (path != w.root && strings.HasPrefix(base, ".")) || path == w.reports
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnore reports editor temp and swap files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")
}
