package common

import (
	"strings"
	"testing"
)

func resetBuild(t *testing.T) {
	t.Helper()
	v, b, c := Version, Build, Commit
	Version, Build, Commit = "dev", "unknown", "unknown"
	t.Cleanup(func() { Version, Build, Commit = v, b, c })
}

func TestReadVersionFile(t *testing.T) {
	resetBuild(t)

	readVersionFile(strings.NewReader(`
# release metadata
version: 1.4.0
build=2026-10-01
commit: 0123456789abcdef
garbage line
`))

	got := CurrentBuild()
	if got.Version != "1.4.0" {
		t.Errorf("Version = %q, want 1.4.0", got.Version)
	}
	if got.Build != "2026-10-01" {
		t.Errorf("Build = %q, want 2026-10-01", got.Build)
	}
	if got.Commit != "0123456" {
		t.Errorf("Commit = %q, want 0123456", got.Commit)
	}
}

func TestReadVersionFile_LdflagsWin(t *testing.T) {
	resetBuild(t)
	Version = "2.0.0"

	readVersionFile(strings.NewReader("version: 1.4.0\n"))

	if Version != "2.0.0" {
		t.Errorf("Version = %q, ldflags value should be kept", Version)
	}
}
