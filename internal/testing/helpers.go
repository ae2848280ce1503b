// Package testing holds helpers shared by the package tests: unit versus
// integration gating and utilities for inspecting log files written by
// the asynchronous back-end.
package testing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Unit returns true if running in unit test mode. Unit tests are fast and
// avoid long-running stress scenarios. OMNILOG_UNIT_TESTS_ONLY=true forces
// unit mode; OMNILOG_RUN_INTEGRATION_TESTS=true enables integration tests
// even with -short.
func Unit() bool {
	if os.Getenv("OMNILOG_UNIT_TESTS_ONLY") == "true" {
		return true
	}
	switch os.Getenv("OMNILOG_RUN_INTEGRATION_TESTS") {
	case "true":
		return false
	case "false":
		return true
	}
	return true
}

// Integration returns true if running in integration test mode.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips the test if running in unit test mode.
func SkipIfUnit(t testing.TB, message ...string) {
	t.Helper()
	if Unit() {
		msg := "Skipping integration test in unit mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// LogPath returns a path for a log file inside a per-test temporary
// directory. The file itself is not created.
func LogPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// ReadLines returns the complete, newline-terminated lines of path. A
// trailing partial line is not returned. A missing file yields no lines.
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", path, err)
	}
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	} else {
		return nil
	}
	var lines []string
	for _, l := range bytes.Split(data, []byte{'\n'}) {
		lines = append(lines, string(l))
	}
	return lines
}

// WaitForLines polls path until it holds at least n complete lines or
// timeout elapses, and returns the lines read last.
func WaitForLines(t testing.TB, path string, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		lines := ReadLines(t, path)
		if len(lines) >= n || time.Now().After(deadline) {
			return lines
		}
		time.Sleep(5 * time.Millisecond)
	}
}
