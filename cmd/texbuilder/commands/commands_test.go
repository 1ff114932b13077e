package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	helpers "git.home.luguber.info/inful/texbuilder/internal/testutil/testutils"
)

const fakeLatex = `for a in "$@"; do f=$a; done
b=$(basename "$f" .tex)
printf '%s\n' '\relax' > "$b.aux"
echo pdf > "$b.pdf"`

// run parses args against a fresh CLI and executes the selected command.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := &CLI{out: &out}
	parser, err := kong.New(cli, kong.Name("texbuilder"), kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = kctx.Run(&Global{Logger: slog.Default()}, cli)
	return out.String(), err
}

// project writes a config with one document and a fake compiler.
func project(t *testing.T, extra string) string {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	helpers.FakeTool(t, bin, "latex", fakeLatex)
	helpers.WriteFile(t, filepath.Join(root, "paper"), "paper.tex", "\\documentclass{article}\n")
	cfg := fmt.Sprintf(`version: "1"
documents:
  root: .
  include: [paper/paper.tex]
tools:
  latex:
    command: latex
    path: %s
  bibtex:
    command: bibtex
    path: %s
%s`, bin, bin, extra)
	return helpers.WriteFile(t, root, config.DefaultPath, cfg)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")
	assert.FileExists(t, filepath.Join(dir, config.DefaultPath))

	_, err = run(t, "init", "--output", dir)
	require.Error(t, err)

	_, err = run(t, "init", "--output", dir, "--force")
	require.NoError(t, err)
}

func TestDiscoverCommand(t *testing.T) {
	cfgPath := project(t, "")
	out, err := run(t, "--config", cfgPath, "discover")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("paper", "paper.tex"))
}

func TestBuildCommand_WritesReportAndHistory(t *testing.T) {
	cfgPath := project(t, "history:\n  enabled: true\n")
	root := filepath.Dir(cfgPath)

	out, err := run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "paper.tex")
	assert.FileExists(t, filepath.Join(root, "paper", "paper.pdf"))
	assert.FileExists(t, filepath.Join(root, ".texbuilder", "build-report.json"))

	out, err = run(t, "--config", cfgPath, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Equal(t, 2, strings.Count(out, "\n"), "header plus one build")
}

func TestBuildCommand_FailedBuildReturnsBuildError(t *testing.T) {
	cfgPath := project(t, "")
	bin := filepath.Join(filepath.Dir(cfgPath), "bin")
	helpers.FakeTool(t, bin, "latex", "exit 1")

	_, err := run(t, "--config", cfgPath, "build", "--no-report")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryBuild))
}

func TestBuildCommand_MissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "build")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestHistoryCommand_Disabled(t *testing.T) {
	cfgPath := project(t, "")
	_, err := run(t, "--config", cfgPath, "history", "list")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLintCommand_RequiresChktex(t *testing.T) {
	cfgPath := project(t, "")
	_, err := run(t, "--config", cfgPath, "lint")
	require.Error(t, err)
}

func TestDiffCommand(t *testing.T) {
	cfgPath := project(t, "")
	dir := t.TempDir()
	a := helpers.WriteFile(t, dir, "a.txt", "one\ntwo\n")
	b := helpers.WriteFile(t, dir, "b.txt", "one\nthree\n")
	same := helpers.WriteFile(t, dir, "c.txt", "one\ntwo\n")

	_, err := run(t, "--config", cfgPath, "diff", a, same)
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "diff", a, b)
	require.Error(t, err)
	assert.Contains(t, out, "ECHK03")
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true, "error"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(false, "warn"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false, ""))

	t.Setenv(EnvLogLevel, "error")
	assert.Equal(t, slog.LevelError, parseLogLevel(false, "debug"))
}

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	os.Exit(m.Run())
}
