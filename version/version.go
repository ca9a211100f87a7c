// Package version holds build metadata injected at link time.
package version

import "runtime"

// Populated via -ldflags at build time.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain used for the build.
var GoInfo = runtime.Version()
