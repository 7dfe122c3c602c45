// Package proxy provides the per-module build handles the event bridge drives.
//
// A BuildProxy represents one module's build state, which may live in another
// process. Every call may block and may fail; timeouts and retries belong to
// the implementation, never to the caller.
package proxy

import (
	"context"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Op names a proxy mutation.
type Op string

const (
	OpStart            Op = "start"
	OpSetResult        Op = "setResult"
	OpSetExecutedSteps Op = "setExecutedSteps"
	OpEnd              Op = "end"
)

// Valid reports whether op is a known mutation.
func (op Op) Valid() bool {
	switch op {
	case OpStart, OpSetResult, OpSetExecutedSteps, OpEnd:
		return true
	}
	return false
}

// BuildProxy is the handle for one module's build.
type BuildProxy interface {
	Start(ctx context.Context) error
	SetResult(ctx context.Context, result module.Result) error
	SetExecutedSteps(ctx context.Context, steps []module.ExecutedStep) error
	End(ctx context.Context) error
}

// AsyncExecutor is implemented by proxies that can run deferred work which
// the build must wait for before its result is final.
type AsyncExecutor interface {
	ExecuteAsync(ctx context.Context, name string, fn func(context.Context) error)
}

// Factory creates the proxy for a module of the build identified by buildID.
type Factory func(buildID string, name module.Name) (BuildProxy, error)
