// Package process runs external tools, classifies their exit codes and
// verifies that declared output files were actually written.
package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// ErrExecutionFailure marks failures to start or await a process.
// The concrete error is a *errors.TexBuilderError with code TEX01.
var ErrExecutionFailure = stderrors.New("execution failure")

// Environment variables injected for reproducible builds.
const (
	EnvSourceDateEpoch = "SOURCE_DATE_EPOCH"
	EnvForceSourceDate = "FORCE_SOURCE_DATE"
	EnvTZ              = "TZ"
)

const waitDelay = 2 * time.Second

// Invocation describes one tool run. It is not modified by Run.
type Invocation struct {
	// Dir is the working directory; required when Outputs is non-empty.
	Dir string
	// ExecutablePath is the directory containing Command; empty means PATH lookup.
	ExecutablePath string
	Command        string
	Args           []string
	// Env is layered onto the inherited environment unless ReplaceEnv is set.
	Env        map[string]string
	ReplaceEnv bool
	Policy     SuccessPolicy
	// Outputs are files the tool is expected to create or update,
	// relative to Dir unless absolute.
	Outputs []string
	// Timestamp, when set, pins the build date seen by the tool.
	Timestamp *time.Time
}

// CmdResult is the immutable outcome of a completed run.
type CmdResult struct {
	// Output is stdout and stderr interleaved.
	Output      string
	ExitCode    int
	Policy      SuccessPolicy
	Diagnostics []report.Diagnostic
}

// Success reports whether the exit code is acceptable under the policy.
func (r *CmdResult) Success() bool {
	return !r.Policy.HasFailed(r.ExitCode)
}

// Runner executes invocations. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	stat   func(name string) (os.FileInfo, error)
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleeper replaces the pause used before runs that must observe a new
// modification time.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithStat replaces the file stat function used for output verification.
func WithStat(stat func(name string) (os.FileInfo, error)) Option {
	return func(r *Runner) { r.stat = stat }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner using the real clock and filesystem.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		now:    time.Now,
		sleep:  sleepContext,
		stat:   os.Lstat,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes inv and returns its result. A non-nil error is returned only
// when the process could not be started or awaited, or ctx was canceled;
// exit codes and output verification produce diagnostics on the result.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*CmdResult, error) {
	if inv.Command == "" {
		return nil, errors.ValidationError("command is required")
	}
	if inv.Dir == "" && len(inv.Outputs) > 0 {
		return nil, errors.ValidationError("working directory is required when outputs are declared").
			WithContext("command", inv.Command)
	}

	var diags []report.Diagnostic
	before, pause := r.snapshot(inv, &diags)
	if pause > 0 {
		if err := r.sleep(ctx, pause); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, failure(inv.Command, ctxErr).
					WithContext("diagnostic", string(report.CodeUpdateControl))
			}
			diags = append(diags, report.New(report.CodeUpdateControl,
				"update control for %s may emit false warnings", inv.Command))
		}
	}

	output, code, err := r.execute(ctx, inv)
	if err != nil {
		return nil, err
	}

	res := &CmdResult{Output: output, ExitCode: code, Policy: inv.Policy}
	if inv.Policy.HasFailed(code) {
		diags = append(diags, report.New(report.CodeExitCode,
			"running %s failed with return code %d", inv.Command, code))
	}
	for _, st := range before {
		r.verify(inv.Command, st, &diags)
	}
	res.Diagnostics = diags
	return res, nil
}

func (r *Runner) execute(ctx context.Context, inv Invocation) (string, int, error) {
	executable := inv.Command
	if inv.ExecutablePath != "" {
		executable = filepath.Join(inv.ExecutablePath, inv.Command)
	}
	if inv.Dir != "" {
		if fi, err := os.Stat(inv.Dir); err != nil || !fi.IsDir() {
			if err == nil {
				err = fmt.Errorf("%s is not a directory", inv.Dir)
			}
			return "", 0, failure(inv.Command, err)
		}
	}

	cmd := exec.CommandContext(ctx, executable, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = buildEnv(inv)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// children that inherit the output pipe must not block Wait after cancellation
	cmd.WaitDelay = waitDelay

	r.logger.Debug("Executing command",
		logfields.Command(inv.Command),
		slog.Any("args", inv.Args),
		logfields.Path(inv.Dir))
	start := r.now()
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", 0, failure(inv.Command, ctxErr)
	}
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return "", 0, failure(inv.Command, err)
		}
		code = exitErr.ExitCode()
	}
	r.logger.Debug("Command finished",
		logfields.Command(inv.Command),
		logfields.ExitCode(code),
		logfields.DurationMS(float64(r.now().Sub(start).Milliseconds())))
	return out.String(), code, nil
}

func failure(command string, cause error) *errors.TexBuilderError {
	return errors.ExecutionFailure(command, fmt.Errorf("%w: %w", ErrExecutionFailure, cause))
}

// buildEnv layers the invocation environment onto the inherited one.
// Keys are emitted sorted so the child sees a stable order.
func buildEnv(inv Invocation) []string {
	overlay := make(map[string]string, len(inv.Env)+3)
	for k, v := range inv.Env {
		overlay[k] = v
	}
	if inv.Timestamp != nil {
		overlay[EnvSourceDateEpoch] = strconv.FormatInt(inv.Timestamp.Unix(), 10)
		overlay[EnvForceSourceDate] = "1"
		overlay[EnvTZ] = "UTC"
	}
	if len(overlay) == 0 && !inv.ReplaceEnv {
		return nil
	}

	var env []string
	if !inv.ReplaceEnv {
		for _, kv := range os.Environ() {
			key, _, _ := strings.Cut(kv, "=")
			if _, overridden := overlay[key]; !overridden {
				env = append(env, kv)
			}
		}
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	if env == nil {
		env = []string{}
	}
	return env
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
