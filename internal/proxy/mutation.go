package proxy

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Mutation is the wire form of one proxy call.
type Mutation struct {
	ID      string                `json:"id"`
	BuildID string                `json:"build_id"`
	Module  module.Name           `json:"module"`
	Op      Op                    `json:"op"`
	Result  module.Result         `json:"result,omitempty"`
	Steps   []module.ExecutedStep `json:"steps,omitempty"`
	Seq     uint64                `json:"seq"`
	At      time.Time             `json:"at"`
}

// Validate checks that the mutation can be applied.
func (m Mutation) Validate() error {
	if m.BuildID == "" {
		return fmt.Errorf("mutation %s: missing build id", m.ID)
	}
	if m.Module.IsZero() {
		return fmt.Errorf("mutation %s: missing module", m.ID)
	}
	if !m.Op.Valid() {
		return fmt.Errorf("mutation %s: unknown op %q", m.ID, m.Op)
	}
	if m.Op == OpSetResult && !m.Result.IsValid() {
		return fmt.Errorf("mutation %s: invalid result %q", m.ID, m.Result)
	}
	return nil
}

// ApplyTo replays the mutation against p.
func (m Mutation) ApplyTo(ctx context.Context, p BuildProxy) error {
	if err := m.Validate(); err != nil {
		return err
	}
	switch m.Op {
	case OpStart:
		return p.Start(ctx)
	case OpSetResult:
		return p.SetResult(ctx, m.Result)
	case OpSetExecutedSteps:
		return p.SetExecutedSteps(ctx, m.Steps)
	default:
		return p.End(ctx)
	}
}
