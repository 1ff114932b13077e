package document

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
	helpers "git.home.luguber.info/inful/texbuilder/internal/testutil/testutils"
)

func TestNew_DerivedPathsShareDirAndBase(t *testing.T) {
	dir := t.TempDir()
	d, err := New(filepath.Join(dir, "thesis.tex"))
	require.NoError(t, err)

	assert.Equal(t, dir, d.Dir())
	assert.Equal(t, "thesis", d.Base())
	assert.Equal(t, "thesis.tex", d.Name())

	for _, p := range []string{d.Tex(), d.PDF(), d.DVI(), d.XDV(), d.Log(), d.Aux(), d.Idx(), d.Ind(), d.Ilg(),
		d.Glo(), d.Gls(), d.Glg(), d.Bbl(), d.Blg(), d.Pytxcode(), d.WithSuffix(SuffixSynctex)} {
		assert.Equal(t, dir, filepath.Dir(p), p)
		assert.Regexp(t, `^thesis\.`, filepath.Base(p))
	}
	assert.Equal(t, filepath.Join(dir, "thesis.synctex.gz"), d.WithSuffix(SuffixSynctex))
	assert.Equal(t, filepath.Join(dir, "thesis.aux"), d.Aux())
}

func TestIsDerived(t *testing.T) {
	dir := t.TempDir()
	d, err := New(filepath.Join(dir, "thesis.tex"))
	require.NoError(t, err)

	assert.True(t, d.IsDerived(d.Aux()))
	assert.True(t, d.IsDerived(d.WithSuffix(SuffixIst)))
	assert.True(t, d.IsDerived(d.PDF()))
	assert.False(t, d.IsDerived(d.Tex()))
	assert.False(t, d.IsDerived(filepath.Join(dir, "thesis.bib")))
	assert.False(t, d.IsDerived(filepath.Join(dir, "other.aux")))
}

func TestNew_RejectsNonTex(t *testing.T) {
	_, err := New("/tmp/notes.md")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNew_MakesRelativeAbsolute(t *testing.T) {
	d, err := New("doc.tex")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(d.Tex()))
}

func TestTarget(t *testing.T) {
	d, err := New("/work/doc.tex")
	require.NoError(t, err)
	for format, want := range map[string]string{"": "/work/doc.pdf", "pdf": "/work/doc.pdf", "dvi": "/work/doc.dvi", "xdv": "/work/doc.xdv"} {
		got, err := d.Target(format)
		require.NoError(t, err)
		assert.Equal(t, filepath.FromSlash(want), got)
	}
	_, err = d.Target("html")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	helpers.WriteFile(t, root, "main.tex", "% comment\n  \\documentclass{article}\n")
	helpers.WriteFile(t, root, "chapters/intro.tex", "\\section{Intro}\n")
	helpers.WriteFile(t, root, "old/legacy.tex", "\\documentstyle{report}\n")
	helpers.WriteFile(t, root, ".git/ignored.tex", "\\documentclass{article}\n")
	helpers.WriteFile(t, root, "notes.txt", "\\documentclass{article}\n")

	docs, err := Discover(root, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "main", docs[0].Base())
	assert.Equal(t, "legacy", docs[1].Base())

	docs, err = Discover(root, regexp.MustCompile(`^\\section`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "intro", docs[0].Base())
}
