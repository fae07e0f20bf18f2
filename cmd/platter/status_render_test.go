package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"platter/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "cdparanoia", Available: false, Detail: `binary "cdparanoia" not found`},
		{Name: "flac", Available: true, Command: "flac"},
		{Name: "eject", Available: false, Optional: true, Detail: `binary "eject" not found`},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "cdparanoia") {
		t.Fatalf("expected cdparanoia error line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: flac)") {
		t.Fatalf("expected flac ready line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN]") {
		t.Fatalf("expected optional dependency to warn, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || strings.Contains(lines[3], "eject") {
		t.Fatalf("expected only required deps in missing summary, got %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
