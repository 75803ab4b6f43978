package common

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X .../internal/common.Version=..."
var (
	Version = "dev"
	Build   = "unknown"
	Commit  = "unknown"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// CurrentBuild returns the version triple of this binary.
func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, Commit: Commit}
}

// LoadBuildInfo fills values that ldflags left at their defaults, first
// from a .version file beside the executable, then from the VCS stamp the
// Go toolchain embeds.
func LoadBuildInfo() {
	if exe, err := os.Executable(); err == nil {
		if f, err := os.Open(filepath.Join(filepath.Dir(exe), ".version")); err == nil {
			readVersionFile(f)
			f.Close()
		}
	}

	if Commit != "unknown" {
		return
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				Commit = shortRevision(s.Value)
			}
		}
	}
}

// readVersionFile accepts "key: value" or "key=value" lines; # starts a comment.
func readVersionFile(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			key, val, ok = strings.Cut(line, "=")
		}
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "version":
			setDefault(&Version, "dev", val)
		case "build":
			setDefault(&Build, "unknown", val)
		case "commit":
			setDefault(&Commit, "unknown", shortRevision(val))
		}
	}
}

func setDefault(dst *string, unset, val string) {
	if *dst == unset && val != "" {
		*dst = val
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
