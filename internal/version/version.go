// Package version exposes the build identity served by /version.
package version

// Version is the notifier release version. Release automation bumps it.
var Version = "0.0.0"

// GitCommit and BuildDate are stamped at build time via -ldflags.
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)
