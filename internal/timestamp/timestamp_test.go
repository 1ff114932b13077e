package timestamp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/process"
	helpers "git.home.luguber.info/inful/texbuilder/internal/testutil/testutils"
)

func TestResolve_None(t *testing.T) {
	ts, err := Resolve(config.TimestampNone, "", t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestResolve_Fixed(t *testing.T) {
	ts, err := Resolve(config.TimestampFixed, "86400", "")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), *ts)

	_, err = Resolve(config.TimestampFixed, "tomorrow", "")
	require.Error(t, err)
}

func TestResolve_Env(t *testing.T) {
	t.Setenv(process.EnvSourceDateEpoch, "1700000000")
	ts, err := Resolve(config.TimestampEnv, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())

	t.Setenv(process.EnvSourceDateEpoch, "")
	_, err = Resolve(config.TimestampEnv, "", "")
	require.Error(t, err)
}

func TestResolve_Git(t *testing.T) {
	_, w, root := helpers.SetupTestGitRepo(t)
	first := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 29, 8, 30, 0, 0, time.UTC)
	helpers.CommitFile(t, w, root, "main.tex", "\\documentclass{article}\n", first)
	helpers.CommitFile(t, w, root, "refs.bib", "@book{a,}\n", second)

	sub := filepath.Join(root, "chapters")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	ts, err := Resolve(config.TimestampGit, "", sub)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, second.Equal(*ts), "got %s", ts)
}

func TestResolve_GitOutsideRepository(t *testing.T) {
	_, err := Resolve(config.TimestampGit, "", t.TempDir())
	require.Error(t, err)
}

func TestResolve_UnknownMode(t *testing.T) {
	_, err := Resolve("yesterday", "", "")
	require.Error(t, err)
}
