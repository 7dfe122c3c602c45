package execevent

import (
	"github.com/Masterminds/semver/v3"
)

// Tool versions before 3.0.2 cannot hand out the exception of a failed event.
const failureAccessorConstraint = ">= 3.0.2"

var failureAccessor = mustConstraint(failureAccessorConstraint)

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}

// Capabilities describes what the reporting build tool can provide.
type Capabilities struct {
	version *semver.Version
}

// CapabilitiesFor parses the tool version. An empty or unparsable version
// yields capabilities that assume a current tool.
func CapabilitiesFor(version string) Capabilities {
	if version == "" {
		return Capabilities{}
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return Capabilities{}
	}
	return Capabilities{version: v}
}

// Version returns the parsed tool version, or an empty string when unknown.
func (c Capabilities) Version() string {
	if c.version == nil {
		return ""
	}
	return c.version.String()
}

// FailureAccessor reports whether failed events can carry their exception.
func (c Capabilities) FailureAccessor() bool {
	if c.version == nil {
		return true
	}
	return failureAccessor.Check(c.version)
}
