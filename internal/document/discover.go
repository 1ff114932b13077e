package document

import (
	"bufio"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// DefaultMainPattern matches the line that marks a file as a main document.
const DefaultMainPattern = `^\s*\\(documentstyle|documentclass)`

// Discover walks root and returns descriptors for every .tex file that has a
// line matching pattern. Hidden directories are skipped. Results are sorted by path.
func Discover(root string, pattern *regexp.Regexp) ([]*Descriptor, error) {
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultMainPattern)
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != SuffixTex {
			return nil
		}
		ok, scanErr := hasMatchingLine(path, pattern)
		if scanErr != nil {
			slog.Warn("Skipping unreadable source file", logfields.Path(path), logfields.Error(scanErr))
			return nil
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.FileSystemError("discover documents", err).WithContext("root", root)
	}
	sort.Strings(paths)
	out := make([]*Descriptor, 0, len(paths))
	for _, p := range paths {
		desc, err := New(p)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

func hasMatchingLine(path string, pattern *regexp.Regexp) (bool, error) {
	// #nosec G304 -- walking a user-selected source tree
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if pattern.MatchString(sc.Text()) {
			return true, nil
		}
	}
	return false, sc.Err()
}
