package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// FileAssertions provides utilities for asserting file system state in tests.
type FileAssertions struct {
	t       *testing.T
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t *testing.T, baseDir string) *FileAssertions {
	return &FileAssertions{
		t:       t,
		baseDir: baseDir,
	}
}

// AssertFileExists validates that a file exists.
func (fa *FileAssertions) AssertFileExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		fa.t.Errorf("Expected file to exist: %s", fullPath)
	}
	return fa
}

// AssertFileNotExists validates that a file does not exist.
func (fa *FileAssertions) AssertFileNotExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(fullPath); err == nil {
		fa.t.Errorf("Expected file to not exist: %s", fullPath)
	}
	return fa
}

// AssertFileContains validates that a file contains expected content.
func (fa *FileAssertions) AssertFileContains(relativePath, expectedContent string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)

	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", fullPath, err)
		return fa
	}

	if !strings.Contains(string(content), expectedContent) {
		fa.t.Errorf("Expected file %s to contain %q\nActual content:\n%s",
			relativePath, expectedContent, string(content))
	}
	return fa
}

// AssertLineCount validates the number of lines in a file.
// Tools faked with AppendTool log one line per invocation, so this counts runs.
func (fa *FileAssertions) AssertLineCount(relativePath string, want int) *FileAssertions {
	fa.t.Helper()
	got := CountLines(fa.t, filepath.Join(fa.baseDir, relativePath))
	if got != want {
		fa.t.Errorf("Expected %d lines in %s, found %d", want, relativePath, got)
	}
	return fa
}

// CountLines returns the number of lines in path, or 0 when it does not exist.
func CountLines(t *testing.T, path string) int {
	t.Helper()
	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	s := strings.TrimRight(string(content), "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// WriteFile writes content below dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("failed to create dir for %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// Age sets the modification time of path to d in the past so freshness
// checks do not need to pause.
func Age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	mt := time.Now().Add(-d)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("failed to set times on %s: %v", path, err)
	}
}
