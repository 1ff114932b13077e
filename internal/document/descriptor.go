// Package document derives the deterministic sibling paths of a LaTeX main
// document and discovers main documents below a source tree.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
)

// Suffixes of files derived from a main document.
const (
	SuffixTex      = ".tex"
	SuffixPDF      = ".pdf"
	SuffixDVI      = ".dvi"
	SuffixXDV      = ".xdv"
	SuffixLog      = ".log"
	SuffixAux      = ".aux"
	SuffixIdx      = ".idx"
	SuffixInd      = ".ind"
	SuffixIlg      = ".ilg"
	SuffixGlo      = ".glo"
	SuffixGls      = ".gls"
	SuffixGlg      = ".glg"
	SuffixIst      = ".ist"
	SuffixBbl      = ".bbl"
	SuffixBlg      = ".blg"
	SuffixToc      = ".toc"
	SuffixLof      = ".lof"
	SuffixLot      = ".lot"
	SuffixOut      = ".out"
	SuffixPytxcode = ".pytxcode"
	SuffixSynctex  = ".synctex.gz"
	SuffixFls      = ".fls"
)

var derivedSuffixes = []string{
	SuffixPDF, SuffixDVI, SuffixXDV, SuffixLog, SuffixAux, SuffixIdx, SuffixInd,
	SuffixIlg, SuffixGlo, SuffixGls, SuffixGlg, SuffixIst, SuffixBbl, SuffixBlg,
	SuffixToc, SuffixLof, SuffixLot, SuffixOut, SuffixPytxcode, SuffixSynctex, SuffixFls,
}

// Descriptor is an immutable description of one main document.
// Every derived path shares the directory and base name of the main file.
type Descriptor struct {
	dir  string
	base string
}

// New creates a descriptor for the given .tex file. Relative paths are made absolute.
func New(texPath string) (*Descriptor, error) {
	if !strings.HasSuffix(texPath, SuffixTex) {
		return nil, errors.ValidationFailed("document", fmt.Sprintf("%s does not end in %s", texPath, SuffixTex))
	}
	abs, err := filepath.Abs(texPath)
	if err != nil {
		return nil, errors.FileSystemError("resolve document path", err).WithContext("path", texPath)
	}
	base := strings.TrimSuffix(filepath.Base(abs), SuffixTex)
	if base == "" {
		return nil, errors.ValidationFailed("document", "empty base name")
	}
	return &Descriptor{dir: filepath.Dir(abs), base: base}, nil
}

// WithSuffix returns the sibling path with the given suffix (including the dot).
func (d *Descriptor) WithSuffix(suffix string) string {
	return filepath.Join(d.dir, d.base+suffix)
}

// IsDerived reports whether path is a file the toolchain writes for d,
// such as its .aux or .ist.
func (d *Descriptor) IsDerived(path string) bool {
	for _, s := range derivedSuffixes {
		if path == d.WithSuffix(s) {
			return true
		}
	}
	return false
}

// Dir is the directory of the main file, used as working directory for all tools.
func (d *Descriptor) Dir() string { return d.dir }

// Base is the file name of the main file without extension.
func (d *Descriptor) Base() string { return d.base }

// Name is the file name of the main file.
func (d *Descriptor) Name() string { return d.base + SuffixTex }

func (d *Descriptor) Tex() string      { return d.WithSuffix(SuffixTex) }
func (d *Descriptor) PDF() string      { return d.WithSuffix(SuffixPDF) }
func (d *Descriptor) DVI() string      { return d.WithSuffix(SuffixDVI) }
func (d *Descriptor) XDV() string      { return d.WithSuffix(SuffixXDV) }
func (d *Descriptor) Log() string      { return d.WithSuffix(SuffixLog) }
func (d *Descriptor) Aux() string      { return d.WithSuffix(SuffixAux) }
func (d *Descriptor) Idx() string      { return d.WithSuffix(SuffixIdx) }
func (d *Descriptor) Ind() string      { return d.WithSuffix(SuffixInd) }
func (d *Descriptor) Ilg() string      { return d.WithSuffix(SuffixIlg) }
func (d *Descriptor) Glo() string      { return d.WithSuffix(SuffixGlo) }
func (d *Descriptor) Gls() string      { return d.WithSuffix(SuffixGls) }
func (d *Descriptor) Glg() string      { return d.WithSuffix(SuffixGlg) }
func (d *Descriptor) Bbl() string      { return d.WithSuffix(SuffixBbl) }
func (d *Descriptor) Blg() string      { return d.WithSuffix(SuffixBlg) }
func (d *Descriptor) Pytxcode() string { return d.WithSuffix(SuffixPytxcode) }

// Target returns the compiled output path for format ("pdf", "dvi" or "xdv").
func (d *Descriptor) Target(format string) (string, error) {
	switch format {
	case "", "pdf":
		return d.PDF(), nil
	case "dvi":
		return d.DVI(), nil
	case "xdv":
		return d.XDV(), nil
	}
	return "", errors.ValidationFailed("target", fmt.Sprintf("unsupported target format %q", format))
}

func (d *Descriptor) String() string { return d.Tex() }
