// Package auxiliary defines the closed set of auxiliary processing kinds
// (bibliography, index, glossary, embedded code): when each must run, which
// lines of its signal file are relevant, and how its tool is invoked.
package auxiliary

import (
	"fmt"
	"os"
	"regexp"

	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/signature"
)

// Kind is an auxiliary processing step. The set is closed.
type Kind int

const (
	Bibliography Kind = iota
	Index
	Glossary
	EmbeddedCode
)

// All returns every kind in the order they are checked.
func All() []Kind {
	return []Kind{Bibliography, Index, Glossary, EmbeddedCode}
}

// Markers scanned in generated files, anchored at line start.
var (
	bibliographyMarker = regexp.MustCompile(`(?m)^\\(citation|bibstyle|bibdata)\{`)
	inputDirective     = regexp.MustCompile(`^\\@input\{(?P<file>[^}]+)\}`)
	glossaryMarker     = regexp.MustCompile(`(?m)^\\@istfilename\{`)
	newGlossary        = regexp.MustCompile(`^\\@newglossary\{[^}]*\}\{[^}]*\}\{[^}]*\}\{(?P<ext>[^}]+)\}`)
	splitIndexEntry    = regexp.MustCompile(`(?m)^\\indexentry\[`)
)

type descriptor struct {
	name        string
	trigger     func(d *document.Descriptor) string
	mustRun     func(d *document.Descriptor) (bool, error)
	filter      func(d *document.Descriptor) *signature.Filter
	recurse     bool
	invoke      func(t *Toolchain, d *document.Descriptor) toolCall
	rerunsAfter int
	tocEntry    bool
}

// kinds is indexed by Kind; every Kind must have an entry.
var kinds = [...]descriptor{
	Bibliography: {
		name:        "bibliography",
		trigger:     (*document.Descriptor).Aux,
		mustRun:     func(d *document.Descriptor) (bool, error) { return fileMatches(d.Aux(), bibliographyMarker) },
		filter:      func(*document.Descriptor) *signature.Filter { return bibliographyFilter },
		recurse:     true,
		invoke:      bibtexCall,
		rerunsAfter: 2,
		tocEntry:    true,
	},
	Index: {
		name:        "index",
		trigger:     (*document.Descriptor).Idx,
		mustRun:     func(d *document.Descriptor) (bool, error) { return exists(d.Idx()) },
		filter:      func(*document.Descriptor) *signature.Filter { return signature.AllLines },
		invoke:      makeindexCall,
		rerunsAfter: 1,
		tocEntry:    true,
	},
	Glossary: {
		name:        "glossary",
		trigger:     (*document.Descriptor).Aux,
		mustRun:     func(d *document.Descriptor) (bool, error) { return fileMatches(d.Aux(), glossaryMarker) },
		filter:      glossaryFilter,
		recurse:     true,
		invoke:      makeglossariesCall,
		rerunsAfter: 1,
		tocEntry:    true,
	},
	EmbeddedCode: {
		name:        "embedded-code",
		trigger:     (*document.Descriptor).Pytxcode,
		mustRun:     func(d *document.Descriptor) (bool, error) { return exists(d.Pytxcode()) },
		filter:      func(*document.Descriptor) *signature.Filter { return signature.AllLines },
		invoke:      pythontexCall,
		rerunsAfter: 1,
	},
}

func (k Kind) def() *descriptor {
	if k < 0 || int(k) >= len(kinds) {
		panic(fmt.Sprintf("auxiliary: unknown kind %d", int(k)))
	}
	return &kinds[k]
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kinds[k].name
}

// ParseKind maps a name as printed by String back to a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range All() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown auxiliary kind %q", name)
}

// Trigger is the file whose presence makes the kind applicable.
func (k Kind) Trigger(d *document.Descriptor) string { return k.def().trigger(d) }

// MustRun reports whether the kind's tool is needed at all. When the signal
// file cannot be read it returns true together with the error.
func (k Kind) MustRun(d *document.Descriptor) (bool, error) { return k.def().mustRun(d) }

// Filter returns the relevant-line filter used for the kind's signature.
func (k Kind) Filter(d *document.Descriptor) *signature.Filter { return k.def().filter(d) }

// Signature computes the content signature of the kind's trigger file.
func (k Kind) Signature(d *document.Descriptor) (signature.Signature, error) {
	def := k.def()
	return signature.Compute(def.trigger(d), def.filter(d), def.recurse)
}

// RerunsAfter is the minimum number of compiler passes owed after the tool ran.
func (k Kind) RerunsAfter() int { return k.def().rerunsAfter }

// TocEntry reports whether the kind's output may appear in the table of contents.
func (k Kind) TocEntry() bool { return k.def().tocEntry }

var bibliographyFilter = &signature.Filter{
	Name:     "bibliography",
	Relevant: bibliographyMarker.MatchString,
	Follow: func(line string) []signature.Ref {
		m := inputDirective.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		return []signature.Ref{{Name: m[inputDirective.SubexpIndex("file")]}}
	},
}

func glossaryFilter(d *document.Descriptor) *signature.Filter {
	base := d.Base()
	return &signature.Filter{
		Name:     "glossary",
		Relevant: newGlossary.MatchString,
		Follow: func(line string) []signature.Ref {
			m := newGlossary.FindStringSubmatch(line)
			if m == nil {
				return nil
			}
			return []signature.Ref{{Name: base + "." + m[newGlossary.SubexpIndex("ext")], Filter: signature.AllLines}}
		},
	}
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// fileMatches fails open: an unreadable file reports true with the error.
func fileMatches(path string, re *regexp.Regexp) (bool, error) {
	// #nosec G304 -- path derived from the document descriptor
	content, err := os.ReadFile(path)
	if err != nil {
		return true, err
	}
	return re.Match(content), nil
}
