// Package convergence drives the alternation of compiler passes and
// auxiliary tool runs for one document until the relevant content of every
// auxiliary kind stops changing or the rerun budget is spent.
package convergence

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/auxiliary"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/logscan"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	"git.home.luguber.info/inful/texbuilder/internal/report"
	"git.home.luguber.info/inful/texbuilder/internal/signature"
)

// DefaultMaxReruns bounds compiler reruns after the first pass.
const DefaultMaxReruns = 5

// Unbounded disables the rerun bound.
const Unbounded = -1

// LogPatterns classify lines of the compiler log. Nil patterns match nothing.
type LogPatterns struct {
	Rerun   *regexp.Regexp
	Error   *regexp.Regexp
	Warning *regexp.Regexp
	// BadBox is only scanned when non-nil.
	BadBox *regexp.Regexp
}

// DefaultLogPatterns returns the standard LaTeX log patterns.
func DefaultLogPatterns() LogPatterns {
	return LogPatterns{
		Rerun:   logscan.MustCompile(logscan.LatexRerun),
		Error:   logscan.MustCompile(logscan.LatexError),
		Warning: logscan.MustCompile(logscan.LatexWarning),
		BadBox:  logscan.MustCompile(logscan.LatexBadBox),
	}
}

// Driver builds documents. A Driver holds no per-document state; one value
// may serve concurrent builds of documents in distinct directories.
type Driver struct {
	tools    *auxiliary.Toolchain
	compiler auxiliary.Command
	format   string
	patterns LogPatterns
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewDriver creates a driver that compiles with compiler and runs auxiliary
// tools from tools.
func NewDriver(tools *auxiliary.Toolchain, compiler auxiliary.Command) *Driver {
	return &Driver{
		tools:    tools,
		compiler: compiler,
		format:   "pdf",
		patterns: DefaultLogPatterns(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// WithFormat sets the compiled target format (pdf, dvi or xdv).
func (d *Driver) WithFormat(format string) *Driver {
	if format != "" {
		d.format = format
	}
	return d
}

// WithLogPatterns replaces the compiler log patterns.
func (d *Driver) WithLogPatterns(p LogPatterns) *Driver {
	d.patterns = p
	return d
}

// WithRecorder allows injection of a metrics recorder.
func (d *Driver) WithRecorder(r metrics.Recorder) *Driver {
	if r != nil {
		d.recorder = r
	}
	return d
}

// WithLogger sets the logger.
func (d *Driver) WithLogger(l *slog.Logger) *Driver {
	if l != nil {
		d.logger = l
	}
	return d
}

// run holds the mutable state of one Build call.
type run struct {
	desc   *document.Descriptor
	out    *Outcome
	diags  *report.Diagnostics
	prior  map[auxiliary.Kind]signature.Signature
	logger *slog.Logger
}

// Build compiles desc until convergence or until maxReruns compiler reruns
// were spent (negative means unbounded). The compiler runs at most
// maxReruns+1 times. Only execution failures are returned as errors;
// everything else is recorded in the outcome's diagnostics.
func (d *Driver) Build(ctx context.Context, desc *document.Descriptor, maxReruns int) (*Outcome, error) {
	start := d.now()
	r := &run{
		desc:   desc,
		out:    &Outcome{Document: desc.Tex(), ToolRuns: make(map[auxiliary.Kind]int)},
		diags:  report.NewDiagnostics(desc.Name()).WithLogger(d.logger),
		prior:  make(map[auxiliary.Kind]signature.Signature),
		logger: d.logger.With(logfields.Document(desc.Name())),
	}

	if err := d.compile(ctx, r); err != nil {
		return nil, err
	}
	owed := 0
	for iteration := 0; ; iteration++ {
		ranAny := false
		for _, kind := range auxiliary.All() {
			ran, err := d.check(ctx, r, iteration, kind)
			if err != nil {
				return nil, err
			}
			if ran {
				ranAny = true
				owed = max(owed, kind.RerunsAfter())
			}
		}
		if owed == 0 && d.logRequestsRerun(r) {
			owed = 1
		}
		if !ranAny && owed == 0 {
			r.out.Converged = true
			break
		}
		reruns := r.out.CompilerRuns - 1
		if maxReruns >= 0 && reruns >= maxReruns {
			r.diags.Add(report.CodeNotConverged,
				"convergence not confirmed after %d reruns; output may be incomplete", reruns)
			break
		}
		if err := d.compile(ctx, r); err != nil {
			return nil, err
		}
		if owed > 0 {
			owed--
		}
	}

	d.scanCompilerLog(r)
	r.out.Diagnostics = r.diags.All()
	r.out.Duration = d.now().Sub(start)
	for _, diag := range r.out.Diagnostics {
		d.recorder.IncDiagnostic(string(diag.Code))
	}
	d.recorder.IncDocumentOutcome(r.out.Converged)
	d.recorder.ObserveDocumentDuration(r.out.Duration)
	r.logger.Info("Document build finished",
		slog.Bool("converged", r.out.Converged),
		slog.Int("compiler_runs", r.out.CompilerRuns),
		logfields.DurationMS(float64(r.out.Duration.Milliseconds())))
	return r.out, nil
}

func (d *Driver) compile(ctx context.Context, r *run) error {
	target, err := r.desc.Target(d.format)
	if err != nil {
		return err
	}
	r.logger.Info("Running compiler", logfields.Tool(d.compiler.Name), logfields.Iteration(r.out.CompilerRuns+1))
	res, err := d.tools.Runner.Run(ctx, process.Invocation{
		Dir:            r.desc.Dir(),
		ExecutablePath: d.compiler.Path,
		Command:        d.compiler.Name,
		Args:           append(slices.Clone(d.compiler.Args), r.desc.Name()),
		Outputs:        []string{target},
		Timestamp:      d.tools.Timestamp,
	})
	if err != nil {
		return err
	}
	r.out.CompilerRuns++
	d.recorder.IncCompilerRun()
	r.diags.Append(res.Diagnostics...)
	return nil
}

// check runs one kind's state machine for an iteration and reports whether
// its tool ran.
func (d *Driver) check(ctx context.Context, r *run, iteration int, kind auxiliary.Kind) (bool, error) {
	record := func(s State) {
		r.out.Transitions = append(r.out.Transitions, Transition{Iteration: iteration, Kind: kind, State: s})
	}
	log := r.logger.With(logfields.Kind(kind.String()), logfields.Iteration(iteration))

	trigger := kind.Trigger(r.desc)
	if _, err := os.Stat(trigger); os.IsNotExist(err) {
		record(NotNeeded)
		return false, nil
	}
	needed, err := kind.MustRun(r.desc)
	if err != nil {
		r.diags.Add(report.CodeMustRunUnknown,
			"cannot read %s to decide whether %s is needed; assuming it is: %v", trigger, kind, err)
	}
	if !needed {
		record(NotNeeded)
		d.recorder.IncToolRun(kind.String(), metrics.ResultSkipped)
		return false, nil
	}

	sig, err := kind.Signature(r.desc)
	if err != nil {
		r.diags.Add(report.CodeSignatureDegraded,
			"rerun detection for %s degraded: %v", kind, err)
	}
	prev, seen := r.prior[kind]
	if seen && prev == sig {
		log.Debug("Relevant content unchanged", slog.String("signature", sig.String()))
		record(Unchanged)
		return false, nil
	}
	r.prior[kind] = sig
	record(Changed)
	log.Debug("Relevant content changed", slog.String("signature", sig.String()), slog.Bool("first", !seen))

	errorsBefore := len(r.diags.Errors())
	ran, err := kind.Invoke(ctx, d.tools, r.desc, r.diags)
	if err != nil {
		return false, err
	}
	if !ran {
		return false, nil
	}
	record(Invoked)
	r.out.ToolRuns[kind]++
	if len(r.diags.Errors()) == errorsBefore {
		record(Verified)
		d.recorder.IncToolRun(kind.String(), metrics.ResultSuccess)
	} else {
		d.recorder.IncToolRun(kind.String(), metrics.ResultFailed)
	}
	return true, nil
}

func (d *Driver) logRequestsRerun(r *run) bool {
	if d.patterns.Rerun == nil {
		return false
	}
	content, err := d.tools.Logs.Read(r.desc.Log())
	if err != nil {
		return false
	}
	if logscan.Matches(content, d.patterns.Rerun) {
		r.logger.Debug("Compiler log requests a rerun")
		return true
	}
	return false
}

func (d *Driver) scanCompilerLog(r *run) {
	content, err := d.tools.Logs.Read(r.desc.Log())
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Cannot read compiler log", logfields.File(r.desc.Log()), logfields.Error(err))
		}
		return
	}
	for _, line := range logscan.MatchingLines(content, d.patterns.Error) {
		r.diags.Add(report.CodeLatexError, "%s", line)
	}
	for _, line := range logscan.MatchingLines(content, d.patterns.Warning) {
		r.diags.Add(report.CodeLatexWarning, "%s", line)
	}
	for _, line := range logscan.MatchingLines(content, d.patterns.BadBox) {
		r.diags.Add(report.CodeBadBox, "%s", line)
	}
}
