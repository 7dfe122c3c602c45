package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Putter is the part of jetstream.KeyValue the mirror writes through.
type Putter interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// Mirror publishes module state to a key-value bucket, one key per module
// of each build.
type Mirror struct {
	kv Putter
}

// NewMirror returns a mirror writing to kv.
func NewMirror(kv Putter) *Mirror {
	return &Mirror{kv: kv}
}

// Put stores st under Key(buildID, st.Module).
func (m *Mirror) Put(ctx context.Context, buildID string, st eventstore.ModuleStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal module state: %w", err)
	}
	key := Key(buildID, st.Module)
	if _, err := m.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put module state %s: %w", key, err)
	}
	return nil
}

// Key builds a bucket key. Characters outside the key alphabet become '_'.
func Key(buildID string, name module.Name) string {
	return sanitizeKey(buildID) + "." + sanitizeKey(name.GroupID) + "." + sanitizeKey(name.ArtifactID)
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
