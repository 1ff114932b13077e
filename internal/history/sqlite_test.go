package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/report"
)

func sampleReport(id string, start time.Time, failed bool) *report.BuildReport {
	r := report.NewBuildReport(id)
	r.Start = start
	ok := report.DocumentReport{Document: "a.tex", Converged: true, CompilerRuns: 2, Duration: 1500 * time.Millisecond}
	r.AddDocument(ok)
	if failed {
		bad := report.DocumentReport{
			Document: "b.tex",
			Diagnostics: []report.Diagnostic{
				report.New(report.CodeExitCode, "latex exited with 1"),
			},
		}
		r.AddDocument(bad)
	}
	r.Finish()
	return r
}

func TestSQLiteStore_RecordAndRecent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, sampleReport("b1", base, false)))
	require.NoError(t, store.Record(ctx, sampleReport("b2", base.Add(time.Hour), true)))

	builds, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, "b2", builds[0].ID)
	assert.Equal(t, report.OutcomeFailed, builds[0].Outcome)
	assert.Equal(t, 2, builds[0].Documents)
	assert.Equal(t, 1, builds[0].Errors)
	assert.Equal(t, "b1", builds[1].ID)
	assert.Equal(t, report.OutcomeSuccess, builds[1].Outcome)
	assert.True(t, base.Equal(builds[1].Start))

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Documents(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.Record(ctx, sampleReport("b1", time.Now(), true)))

	docs, err := store.Documents(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.tex", docs[0].Document)
	assert.True(t, docs[0].Converged)
	assert.Equal(t, 2, docs[0].CompilerRuns)
	assert.Equal(t, 1500*time.Millisecond, docs[0].Duration)
	assert.False(t, docs[0].Failed)
	assert.True(t, docs[1].Failed)

	none, err := store.Documents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_Report(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.Record(ctx, sampleReport("b1", time.Now(), true)))

	r, err := store.Report(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", r.BuildID)
	require.Len(t, r.Documents, 2)
	assert.Equal(t, report.CodeExitCode, r.Documents[1].Diagnostics[0].Code)

	_, err = store.Report(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DuplicateBuildID(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.Record(ctx, sampleReport("b1", time.Now(), false)))
	require.Error(t, store.Record(ctx, sampleReport("b1", time.Now(), false)))

	docs, err := store.Documents(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(t.Context(), sampleReport("b1", time.Now(), false)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	builds, err := reopened.Recent(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, builds, 1)
}
