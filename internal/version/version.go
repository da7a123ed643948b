// Package version holds build metadata stamped in with ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/mdocpack/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release of the compiler. It is part of every cache key,
// so upgrading invalidates previously compiled modules.
var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the metadata for --version.
func String() string {
	return fmt.Sprintf("mdocpack %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
