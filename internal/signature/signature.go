// Package signature computes content signatures over the relevant lines of
// generated files. A signature is a cheap change detector: two scans of the
// same relevant content yield equal signatures.
package signature

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrReadFailure is wrapped by Compute when a file in the inclusion closure
// cannot be read to completion.
var ErrReadFailure = errors.New("read failure")

// Signature is the number of relevant lines and a digest over them.
// Signatures are comparable with ==.
type Signature struct {
	Lines  int
	Digest [sha256.Size]byte
}

// Unreadable is returned together with ErrReadFailure.
var Unreadable = Signature{Lines: -1}

func (s Signature) String() string {
	if s == Unreadable {
		return "unreadable"
	}
	return fmt.Sprintf("%d:%x", s.Lines, s.Digest[:8])
}

// Ref names a file to fold into a signature, relative to the directory of
// the file being scanned. A nil Filter means the referencing filter.
type Ref struct {
	Name   string
	Filter *Filter
}

// Filter selects the lines of a file that contribute to its signature and,
// optionally, the files a line refers to.
type Filter struct {
	Name string
	// Relevant reports whether a line (without line terminator) is hashed.
	// Nil means every line is relevant.
	Relevant func(line string) bool
	// Follow returns files referenced by a line. Only consulted when
	// computing recursively.
	Follow func(line string) []Ref
}

// AllLines treats every line as relevant and follows nothing.
var AllLines = &Filter{Name: "all"}

func (f *Filter) relevant(line string) bool {
	return f == nil || f.Relevant == nil || f.Relevant(line)
}

func (f *Filter) name() string {
	if f == nil {
		return AllLines.Name
	}
	return f.Name
}

// Compute scans path with filter. When recurse is true, files returned by the
// filter's Follow are folded in at the position of the referencing line.
// On failure it returns Unreadable and an error wrapping ErrReadFailure.
func Compute(path string, filter *Filter, recurse bool) (Signature, error) {
	if filter == nil {
		filter = AllLines
	}
	acc := &accumulator{h: sha256.New(), recurse: recurse, visited: make(map[string]bool)}
	if err := acc.fold(path, filter); err != nil {
		return Unreadable, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}
	sig := Signature{Lines: acc.lines}
	copy(sig.Digest[:], acc.h.Sum(nil))
	return sig, nil
}

type accumulator struct {
	h       hash.Hash
	lines   int
	recurse bool
	// visited keys are absolute path plus filter name; a file folded twice
	// with the same filter would only repeat content or loop.
	visited map[string]bool
}

func (a *accumulator) fold(path string, filter *Filter) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	key := abs + "\x00" + filter.name()
	if a.visited[key] {
		return nil
	}
	a.visited[key] = true

	// #nosec G304 -- paths are derived from the document directory
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dir := filepath.Dir(abs)
	r := bufio.NewReader(f)
	for {
		raw, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if raw == "" && readErr != nil {
			return nil
		}
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
		if filter.relevant(line) {
			a.lines++
			_, _ = io.WriteString(a.h, line)
			_, _ = io.WriteString(a.h, "\n")
		}
		if a.recurse && filter.Follow != nil {
			for _, ref := range filter.Follow(line) {
				sub := ref.Filter
				if sub == nil {
					sub = filter
				}
				name := ref.Name
				if !filepath.IsAbs(name) {
					name = filepath.Join(dir, name)
				}
				if err := a.fold(name, sub); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			return nil
		}
	}
}
