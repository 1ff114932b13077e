package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FakeTool writes an executable POSIX shell script named name into dir and
// returns its path. body is the script after the shebang line.
func FakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require a POSIX shell")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create tool dir: %v", err)
	}
	p := filepath.Join(dir, name)
	// #nosec G306 - test executable must carry the exec bit
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake tool %s: %v", name, err)
	}
	return p
}

// AppendTool writes a fake tool that appends its arguments to <name>.calls in
// its working directory, then runs body.
func AppendTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	return FakeTool(t, dir, name, fmt.Sprintf("echo \"$@\" >> %s.calls\n%s", name, body))
}
