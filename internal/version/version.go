package version

import "fmt"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("sensu-asset-builder %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// UserAgent is sent with every request to the release index.
func UserAgent() string {
	return "sensu-asset-builder/" + Version
}
