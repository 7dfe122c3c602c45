package build

import "errors"

// Sentinel domain errors used to classify host failures. They are always
// wrapped with context at the call site.
var (
	ErrProxySetup = errors.New("buildbridge: proxy setup error")
	ErrLaunch     = errors.New("buildbridge: launch error")
)
