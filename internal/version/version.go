// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/tradestream/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/tradestream/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/streamtest
package version

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "0.3.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"
)

// Resolved returns Version, falling back to the module version recorded by
// go install when no ldflags were given.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String returns a formatted version string.
func String() string {
	return Resolved() + " (" + Commit + ") " + runtime.GOOS + "/" + runtime.GOARCH
}
