package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/mdocpack/internal/config"
	"git.home.luguber.info/inful/mdocpack/internal/metrics"
)

// BuildService compiles page trees.
type BuildService interface {
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs of one build.
type BuildRequest struct {
	Config *config.Config

	// Files restricts the build to these documents; nil discovers every
	// document under the pages and app directories.
	Files []string

	// Force recompiles documents the cache considers fresh.
	Force bool

	// Diff writes a line diff for every module whose content changed.
	Diff bool
}

// FileResult is the outcome for one document.
type FileResult struct {
	Path    string
	Output  string
	Outcome metrics.Outcome
	// Changed is set when the module on disk was rewritten with new content.
	Changed bool
	// Removed is set when the document no longer exists and its module was deleted.
	Removed bool
	Err     error
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	Status  BuildStatus
	BuildID string
	Files   []FileResult

	Compiled int
	Cached   int
	Failed   int
	Removed  int

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
