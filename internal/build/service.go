package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/launcher"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/scm"
)

// BuildService is the canonical interface for executing bridged builds.
type BuildService interface {
	// Run launches the build and returns its outcome. A non-nil error means
	// the build could not be run at all; a failed build is reported through
	// BuildResult.Result.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
	// End runs the post-build pass for the most recent build.
	End(ctx context.Context)
}

// BuildRequest contains the inputs of one build.
type BuildRequest struct {
	// Goals are handed to the build tool unchanged.
	Goals []string

	// Launcher runs or replays the build.
	Launcher launcher.Launcher

	// Workdir is inspected for the source revision recorded with the build.
	Workdir string
}

// BuildResult contains the outcome of a build.
type BuildResult struct {
	BuildID string

	// Result is the overall result after drain overrides and force-success.
	Result module.Result

	// ExitCode is the build tool's exit code.
	ExitCode int

	// Failures are the aggregate failures the build tool reported.
	Failures []error

	// Override is the asynchronous work outcome when it superseded the
	// build tool's result.
	Override *module.Result

	// Forced is set when a failed build was marked as success.
	Forced bool

	Revision scm.Revision

	// Modules maps every registered module to its final lifecycle state.
	Modules map[module.Name]module.State

	Overhead   time.Duration
	ProxyCalls int64
	ProxyTime  time.Duration

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// IsSuccess reports whether the build is considered successful.
func (r *BuildResult) IsSuccess() bool {
	return r != nil && r.Result == module.ResultSuccess
}
