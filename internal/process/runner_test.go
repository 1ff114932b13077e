package process

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/report"
	helpers "git.home.luguber.info/inful/texbuilder/internal/testutil/testutils"
)

func codes(res *CmdResult) []report.Code {
	out := make([]report.Code, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		out = append(out, d.Code)
	}
	return out
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRun_CapturesOutputAndExitCode(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "tool", "echo out\necho err 1>&2\nexit 0")

	r := NewRunner()
	res, err := r.Run(t.Context(), Invocation{ExecutablePath: bin, Command: "tool"})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")
	assert.Empty(t, res.Diagnostics)
}

func TestRun_NonZeroExitIsDiagnosticNotError(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "tool", "exit 3")

	res, err := NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "tool"})
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []report.Code{report.CodeExitCode}, codes(res))
	assert.Contains(t, res.Diagnostics[0].Message, "return code 3")
}

func TestRun_PolicyControlsFailure(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "lint", "exit 2")

	res, err := NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "lint", Policy: ExactlyOne})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Empty(t, res.Diagnostics)

	res, err = NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "lint", Policy: NotZeroOrOne})
	require.NoError(t, err)
	assert.False(t, res.Success())
}

func TestRun_ExecutableMissingIsExecutionFailure(t *testing.T) {
	_, err := NewRunner().Run(t.Context(), Invocation{ExecutablePath: t.TempDir(), Command: "does-not-exist"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrExecutionFailure))
	tbe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "TEX01", tbe.Code)
	assert.Equal(t, errors.CategoryProcess, tbe.Category)
}

func TestRun_MissingWorkingDirIsExecutionFailure(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "tool", "exit 0")
	_, err := NewRunner().Run(t.Context(), Invocation{
		Dir:            filepath.Join(t.TempDir(), "gone"),
		ExecutablePath: bin,
		Command:        "tool",
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrExecutionFailure))
}

func TestRun_OutputsRequireDir(t *testing.T) {
	_, err := NewRunner().Run(t.Context(), Invocation{Command: "tool", Outputs: []string{"x.pdf"}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestRun_ContextCanceled(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "slow", "exec sleep 5")
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, err := NewRunner().Run(ctx, Invocation{ExecutablePath: bin, Command: "slow"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrExecutionFailure))
}

func TestRun_OutputVerification(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	helpers.FakeTool(t, bin, "idle", "exit 0")

	t.Run("created", func(t *testing.T) {
		dir := t.TempDir()
		res, err := NewRunner().Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
		require.NoError(t, err)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("updated", func(t *testing.T) {
		dir := t.TempDir()
		p := helpers.WriteFile(t, dir, "doc.pdf", "old")
		helpers.Age(t, p, time.Hour)
		res, err := NewRunner().Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
		require.NoError(t, err)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("missing", func(t *testing.T) {
		dir := t.TempDir()
		res, err := NewRunner().Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "idle", Outputs: []string{"doc.pdf"}})
		require.NoError(t, err)
		assert.True(t, res.Success())
		assert.Equal(t, []report.Code{report.CodeNoTarget}, codes(res))
		assert.Contains(t, res.Diagnostics[0].Message, "doc.pdf")
	})

	t.Run("not updated", func(t *testing.T) {
		dir := t.TempDir()
		p := helpers.WriteFile(t, dir, "doc.pdf", "old")
		helpers.Age(t, p, time.Hour)
		res, err := NewRunner().Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "idle", Outputs: []string{"doc.pdf"}})
		require.NoError(t, err)
		assert.Equal(t, []report.Code{report.CodeTargetNotUpdated}, codes(res))
	})
}

func TestRun_PausesForFreshOutputs(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	dir := t.TempDir()
	p := helpers.WriteFile(t, dir, "doc.pdf", "old")
	mt := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(p, mt, mt))

	var slept time.Duration
	r := NewRunner(
		WithClock(func() time.Time { return mt.Add(200 * time.Millisecond) }),
		WithSleeper(func(_ context.Context, d time.Duration) error { slept = d; return nil }),
	)
	res, err := r.Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, 801*time.Millisecond, slept)
	assert.Empty(t, res.Diagnostics)
}

func TestRun_InterruptedPauseWarns(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	dir := t.TempDir()
	p := helpers.WriteFile(t, dir, "doc.pdf", "old")
	mt := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, mt, mt))

	r := NewRunner(
		WithClock(func() time.Time { return mt }),
		WithSleeper(func(context.Context, time.Duration) error { return context.Canceled }),
	)
	res, err := r.Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, []report.Code{report.CodeUpdateControl}, codes(res))
}

func TestRun_CanceledPauseIsExecutionFailure(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	dir := t.TempDir()
	helpers.WriteFile(t, dir, "doc.pdf", "fresh")

	ctx, cancel := context.WithCancel(t.Context())
	r := NewRunner(WithSleeper(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))
	res, err := r.Run(ctx, Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, stderrors.Is(err, ErrExecutionFailure))
	tbe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, string(report.CodeUpdateControl), tbe.Context["diagnostic"])
}

func TestRun_AgedOutputsDoNotPause(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	dir := t.TempDir()
	p := helpers.WriteFile(t, dir, "doc.pdf", "old")
	helpers.Age(t, p, 2*TimeResolution)

	var pauses []time.Duration
	r := NewRunner(WithSleeper(func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}))
	res, err := r.Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}})
	require.NoError(t, err)
	assert.Empty(t, pauses)
	assert.Empty(t, res.Diagnostics)
}

func TestRun_BackToBackRunsAdvanceModTime(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "writer", "echo x > doc.pdf")
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.pdf")
	inv := Invocation{Dir: dir, ExecutablePath: bin, Command: "writer", Outputs: []string{"doc.pdf"}}
	r := NewRunner()

	res, err := r.Run(t.Context(), inv)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	first, err := os.Stat(target)
	require.NoError(t, err)

	res, err = r.Run(t.Context(), inv)
	require.NoError(t, err)
	assert.NotContains(t, codes(res), report.CodeTargetNotUpdated)
	second, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, second.ModTime().After(first.ModTime()),
		"mod time %v must be after %v", second.ModTime(), first.ModTime())
}

func TestRun_UnreadableTimestampWarns(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "idle", "exit 0")
	dir := t.TempDir()
	denied := func(name string) (os.FileInfo, error) {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrPermission}
	}
	r := NewRunner(WithStat(denied), WithSleeper(noSleep))
	res, err := r.Run(t.Context(), Invocation{Dir: dir, ExecutablePath: bin, Command: "idle", Outputs: []string{"doc.pdf"}})
	require.NoError(t, err)
	// reported once before the run; not repeated after
	assert.Equal(t, []report.Code{report.CodeTargetUnreadable}, codes(res))
}

func TestRun_TimestampEnvironment(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "env", `echo "$SOURCE_DATE_EPOCH|$FORCE_SOURCE_DATE|$TZ"`)

	ts := time.Unix(1700000000, 999_000_000)
	res, err := NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "env", Timestamp: &ts})
	require.NoError(t, err)
	assert.Equal(t, "1700000000|1|UTC", strings.TrimSpace(res.Output))

	// a later invocation without a timestamp sees none
	t.Setenv(EnvSourceDateEpoch, "")
	res, err = NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "env"})
	require.NoError(t, err)
	assert.NotContains(t, res.Output, "1700000000")
}

func TestRun_EnvOverlayAndReplace(t *testing.T) {
	bin := t.TempDir()
	helpers.FakeTool(t, bin, "env", `echo "$TEXB_A|$TEXB_B"`)
	t.Setenv("TEXB_A", "inherited")

	res, err := NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "env", Env: map[string]string{"TEXB_B": "set"}})
	require.NoError(t, err)
	assert.Equal(t, "inherited|set", strings.TrimSpace(res.Output))

	res, err = NewRunner().Run(t.Context(), Invocation{ExecutablePath: bin, Command: "env", Env: map[string]string{"TEXB_B": "set"}, ReplaceEnv: true})
	require.NoError(t, err)
	assert.Equal(t, "|set", strings.TrimSpace(res.Output))
}
