// Package logscan reads tool log files and finds lines matching configured
// patterns. TeX engines write logs in the input encoding of the document, so
// logs are decoded before matching.
package logscan

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Default patterns. All are matched in multi-line mode against the whole log.
const (
	LatexError   = `^! `
	LatexWarning = `^LaTeX Warning: |^LaTeX Font Warning: |^(Package|Class) .+ Warning: |` +
		`^Missing character: There is no .* in font .*!$|` +
		`^pdfTeX warning \(ext4\): destination with the same identifier|` +
		`^\* Font .+ does not contain script |` +
		`^A space is missing\. \(No warning\)\.`
	LatexBadBox = `^(Overfull|Underfull) \\[hv]box`
	LatexRerun  = `^LaTeX Warning: Label\(s\) may have changed\. Rerun to get cross-references right\.$|` +
		`^Package \w+ Warning: .*Rerun .*$|` +
		`^Package \w+ Warning: .*\n\(\w+\) +.*Rerun .*$|` +
		`^LaTeX Warning: Etaremune labels have changed\.$|` +
		`^\(rerunfilecheck\) +Rerun to get outlines right$`

	BibtexError      = `error message`
	BibtexWarning    = `Warning--`
	MakeindexError   = `!! Input index error `
	MakeindexWarning = `## Warning `
)

// Compile compiles expr in multi-line mode. An empty expression yields nil,
// which matches nothing.
func Compile(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return re, nil
}

// MustCompile is Compile that panics on error; for package-level defaults.
func MustCompile(expr string) *regexp.Regexp {
	re, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return re
}

// Reader decodes log files from a fixed character encoding.
type Reader struct {
	enc encoding.Encoding
}

// NewReader returns a Reader for the named encoding (WHATWG names such as
// "utf-8", "latin1", "windows-1252"). An empty name reads raw bytes.
func NewReader(name string) (*Reader, error) {
	if name == "" {
		return &Reader{}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown log encoding %q: %w", name, err)
	}
	return &Reader{enc: enc}, nil
}

// Read returns the decoded content of path.
func (r *Reader) Read(path string) (string, error) {
	// #nosec G304 -- log paths are derived from the document descriptor
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if r == nil || r.enc == nil {
		return string(raw), nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), r.enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(out), nil
}

// Scan reads path and returns the lines matching re. A nil pattern matches nothing.
func (r *Reader) Scan(path string, re *regexp.Regexp) ([]string, error) {
	content, err := r.Read(path)
	if err != nil {
		return nil, err
	}
	return MatchingLines(content, re), nil
}

// MatchingLines returns each distinct line on which a match of re starts,
// in order of appearance.
func MatchingLines(content string, re *regexp.Regexp) []string {
	if re == nil {
		return nil
	}
	var out []string
	lastStart := -1
	for _, loc := range re.FindAllStringIndex(content, -1) {
		start := strings.LastIndexByte(content[:loc[0]], '\n') + 1
		if start == lastStart {
			continue
		}
		lastStart = start
		end := strings.IndexByte(content[start:], '\n')
		line := content[start:]
		if end >= 0 {
			line = content[start : start+end]
		}
		out = append(out, strings.TrimSuffix(line, "\r"))
	}
	return out
}

// Matches reports whether re matches anywhere in content.
func Matches(content string, re *regexp.Regexp) bool {
	return re != nil && re.MatchString(content)
}
