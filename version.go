package harvest

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version (inject via -ldflags at build time).
	Version = "v0.3.0"
	// GitCommit is the git SHA (inject via -ldflags at build time).
	GitCommit = "unknown"
	// BuildDate is the build timestamp (inject via -ldflags).
	BuildDate = "unknown"
	// GoVersion records the Go toolchain version used.
	GoVersion = runtime.Version()
)

// UserAgent is sent with every request.
func UserAgent() string {
	return "harvest-cli/" + Version
}

// GetVersion returns a human-readable version string.
func GetVersion() string {
	return fmt.Sprintf("harvest-cli %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns version metadata as a map for logging.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
