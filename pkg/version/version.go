package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var Version string

// Commit is set at build time with -ldflags "-X .../pkg/version.Commit=<sha>"
var Commit = "unknown"

// Info describes the running binary, reported by the health endpoint
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
}

// Get returns the current version of the application
func Get() string {
	return strings.TrimSpace(Version)
}

// GetInfo returns version, commit and toolchain information
func GetInfo() Info {
	return Info{Version: Get(), Commit: Commit, GoVersion: runtime.Version()}
}
