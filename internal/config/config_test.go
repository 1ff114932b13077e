package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "texbuilder.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_AppliesDefaults(t *testing.T) {
	p := writeConfig(t, "version: \"1\"\n")

	cfg, res, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, ".", cfg.Documents.Root)
	assert.Equal(t, document.DefaultMainPattern, cfg.Documents.MainPattern)
	assert.Equal(t, "pdflatex", cfg.Tools.Latex.Command)
	assert.Equal(t, defaultLatexArgs(), cfg.Tools.Latex.Args)
	assert.Equal(t, "pdf", cfg.Build.Target)
	assert.Equal(t, DefaultMaxReruns, cfg.MaxReruns())
	assert.Equal(t, 1, cfg.Build.Concurrency)
	assert.Equal(t, TimestampNone, cfg.Build.Timestamp)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, filepath.Dir(cfg.Path()), cfg.Dir())
}

func TestLoad_NotFound(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEXBUILDER_TEST_ENGINE", "lualatex")
	p := writeConfig(t, "tools:\n  latex:\n    command: ${TEXBUILDER_TEST_ENGINE}\n")

	cfg, _, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "lualatex", cfg.Tools.Latex.Command)
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	t.Setenv("TEXBUILDER_TEST_TARGET", "dvi")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TEXBUILDER_TEST_TARGET=xdv\nTEXBUILDER_TEST_ROOT=papers\n"), 0o600))
	p := filepath.Join(dir, "texbuilder.yaml")
	require.NoError(t, os.WriteFile(p,
		[]byte("documents:\n  root: ${TEXBUILDER_TEST_ROOT}\nbuild:\n  target: ${TEXBUILDER_TEST_TARGET}\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TEXBUILDER_TEST_ROOT") })

	cfg, _, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "dvi", cfg.Build.Target)
	assert.Equal(t, "papers", cfg.Documents.Root)
	assert.Equal(t, filepath.Join(dir, "papers"), cfg.Resolve(cfg.Documents.Root))
}

func TestLoad_Normalizes(t *testing.T) {
	p := writeConfig(t, "build:\n  target: PDF\n  timestamp: Git\nlogging:\n  level: warning\n")

	cfg, res, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "pdf", cfg.Build.Target)
	assert.Equal(t, TimestampGit, cfg.Build.Timestamp)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Len(t, res.Warnings, 3)
}

func TestLoad_UnboundedReruns(t *testing.T) {
	p := writeConfig(t, "build:\n  max_reruns: -1\n")
	cfg, _, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.MaxReruns())

	p = writeConfig(t, "build:\n  max_reruns: 0\n")
	cfg, _, err = Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxReruns())
}

func TestValidateConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"target":         "build:\n  target: html\n",
		"reruns":         "build:\n  max_reruns: -2\n",
		"timestamp mode": "build:\n  timestamp: yesterday\n",
		"fixed no value": "build:\n  timestamp: fixed\n",
		"pattern":        "patterns:\n  latex_error: \"(\"\n",
		"encoding":       "log_encoding: klingon\n",
		"level":          "logging:\n  level: loud\n",
		"debounce":       "watch:\n  debounce: soon\n",
		"schedule":       "watch:\n  rebuild_schedule: \"not a cron\"\n",
		"latex disabled": "tools:\n  latex:\n    disabled: true\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, content))
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "got %v", err)
		})
	}
}

func TestParseTimestampValue(t *testing.T) {
	ts, err := ParseTimestampValue("1700000000")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ts)

	ts, err = ParseTimestampValue("2024-01-02T03:04:05+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC), ts)

	_, err = ParseTimestampValue("")
	require.Error(t, err)
}

func TestToolchain_FromConfig(t *testing.T) {
	p := writeConfig(t, "tools:\n  bibtex:\n    command: biber\n  pythontex:\n    disabled: true\n"+
		"patterns:\n  bibtex_error: \"^ERROR\"\n")
	cfg, _, err := Load(p)
	require.NoError(t, err)

	tc, err := cfg.Toolchain(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "biber", tc.Bibtex.Name)
	assert.False(t, tc.Pythontex.Enabled())
	assert.True(t, tc.Makeindex.Enabled())
	assert.True(t, tc.BibtexLog.Error.MatchString("x\nERROR here"))
	assert.Equal(t, []string{"-m", "makeindex"}, tc.Splitindex.Args)
}

func TestLogPatterns_Toggles(t *testing.T) {
	p := writeConfig(t, "build:\n  bad_boxes: false\n  warnings: false\n")
	cfg, _, err := Load(p)
	require.NoError(t, err)

	lp, err := cfg.LogPatterns()
	require.NoError(t, err)
	assert.Nil(t, lp.BadBox)
	assert.Nil(t, lp.Warning)
	assert.NotNil(t, lp.Error)
	assert.NotNil(t, lp.Rerun)
}

func TestInit(t *testing.T) {
	p := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, Init(p, false))

	err := Init(p, false)
	require.Error(t, err)
	require.NoError(t, Init(p, true))

	t.Setenv("NATS_URL", "nats://localhost:4222")
	cfg, _, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, TimestampGit, cfg.Build.Timestamp)
	assert.Equal(t, []string{"thesis.tex"}, cfg.Documents.Include)
	assert.Equal(t, "0 3 * * *", cfg.Watch.RebuildSchedule)
}

func TestCompositeDefaultApplier_Domains(t *testing.T) {
	a := NewDefaultApplier()
	for _, d := range []string{"documents", "tools", "build", "observability", "watch"} {
		assert.NotNil(t, a.GetApplierByDomain(d), d)
	}
	assert.Nil(t, a.GetApplierByDomain("unknown"))
}
