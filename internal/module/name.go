package module

import (
	"fmt"
	"strings"
)

// Name identifies a module of a multi-module build. It is comparable and is used
// as the key of every per-module map.
type Name struct {
	GroupID    string `json:"groupId" yaml:"group_id" toml:"group_id"`
	ArtifactID string `json:"artifactId" yaml:"artifact_id" toml:"artifact_id"`
	Version    string `json:"version" yaml:"version" toml:"version"`
}

// NewName returns the module name for the given coordinates.
func NewName(groupID, artifactID, version string) Name {
	return Name{GroupID: groupID, ArtifactID: artifactID, Version: version}
}

// ParseName parses "group:artifact:version". The version part may be omitted.
func ParseName(s string) (Name, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return Name{GroupID: parts[0], ArtifactID: parts[1]}, nil
	case len(parts) == 3 && parts[0] != "" && parts[1] != "":
		return Name{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}, nil
	default:
		return Name{}, fmt.Errorf("invalid module name %q: want group:artifact[:version]", s)
	}
}

// String renders the name as group:artifact:version.
func (n Name) String() string {
	if n.Version == "" {
		return n.GroupID + ":" + n.ArtifactID
	}
	return n.GroupID + ":" + n.ArtifactID + ":" + n.Version
}

// IsZero reports whether n carries no coordinates.
func (n Name) IsZero() bool {
	return n == Name{}
}

// Compare orders names by group, artifact, then version.
func (n Name) Compare(o Name) int {
	if c := strings.Compare(n.GroupID, o.GroupID); c != 0 {
		return c
	}
	if c := strings.Compare(n.ArtifactID, o.ArtifactID); c != 0 {
		return c
	}
	return strings.Compare(n.Version, o.Version)
}

// Project is the build tool's view of a module taking part in a session.
type Project struct {
	Name        Name   `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Packaging   string `json:"packaging,omitempty"`
	BaseDir     string `json:"baseDir,omitempty"`
}

// Label returns the display name, falling back to the coordinates.
func (p Project) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name.String()
}
