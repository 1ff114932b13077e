package logscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helpers "git.home.luguber.info/inful/texbuilder/internal/testutil/testutils"
)

const sampleLog = `This is pdfTeX, Version 3.141592653
(./doc.tex
LaTeX Warning: Citation 'knuth' on page 1 undefined on input line 5.
Overfull \hbox (12.0pt too wide) in paragraph at lines 7--8
! Undefined control sequence.
l.9 \foo
Package natbib Warning: Citation(s) may have changed.
(natbib)                Rerun to get citations correct.
`

func TestDefaultPatternsCompile(t *testing.T) {
	for _, expr := range []string{LatexError, LatexWarning, LatexBadBox, LatexRerun,
		BibtexError, BibtexWarning, MakeindexError, MakeindexWarning} {
		re, err := Compile(expr)
		require.NoError(t, err, expr)
		require.NotNil(t, re)
	}
}

func TestMatchingLines(t *testing.T) {
	errs := MatchingLines(sampleLog, MustCompile(LatexError))
	assert.Equal(t, []string{"! Undefined control sequence."}, errs)

	warns := MatchingLines(sampleLog, MustCompile(LatexWarning))
	require.Len(t, warns, 2)
	assert.Contains(t, warns[0], "Citation 'knuth'")

	boxes := MatchingLines(sampleLog, MustCompile(LatexBadBox))
	assert.Equal(t, []string{`Overfull \hbox (12.0pt too wide) in paragraph at lines 7--8`}, boxes)

	assert.Nil(t, MatchingLines(sampleLog, nil))
}

func TestRerunPattern(t *testing.T) {
	re := MustCompile(LatexRerun)
	assert.True(t, Matches(sampleLog, re), "two-line package warning")
	assert.True(t, Matches("LaTeX Warning: Label(s) may have changed. Rerun to get cross-references right.\n", re))
	assert.True(t, Matches("Package longtable Warning: Table widths have changed. Rerun LaTeX.\n", re))
	assert.True(t, Matches("(rerunfilecheck)                Rerun to get outlines right\n", re))
	assert.False(t, Matches("LaTeX Warning: Citation 'x' undefined.\n", re))
	assert.False(t, Matches("anything", nil))
}

func TestCompileEmpty(t *testing.T) {
	re, err := Compile("  ")
	require.NoError(t, err)
	assert.Nil(t, re)

	_, err = Compile("(")
	assert.Error(t, err)
}

func TestReader_DecodesLatin1(t *testing.T) {
	dir := t.TempDir()
	p := helpers.WriteFile(t, dir, "doc.log", "LaTeX Warning: Reference `M\xfcller' undefined.\n")

	r, err := NewReader("latin1")
	require.NoError(t, err)
	lines, err := r.Scan(p, MustCompile(LatexWarning))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Müller")

	raw, err := NewReader("")
	require.NoError(t, err)
	content, err := raw.Read(p)
	require.NoError(t, err)
	assert.Contains(t, content, "M\xfcller")

	_, err = NewReader("no-such-charset")
	assert.Error(t, err)
}
