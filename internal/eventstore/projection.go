// Package eventstore provides event sourcing primitives for bridged builds.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

const (
	buildStatusRunning   = "running"
	buildStatusCompleted = "completed"
)

// ModuleStatus is the read model of one module within one build.
type ModuleStatus struct {
	Module    module.Name           `json:"module"`
	State     module.State          `json:"state"`
	Result    module.Result         `json:"result,omitempty"`
	Steps     []module.ExecutedStep `json:"steps,omitempty"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
	EndedAt   *time.Time            `json:"ended_at,omitempty"`
}

// BuildStatus summarizes a bridged build and its modules.
type BuildStatus struct {
	BuildID     string                        `json:"build_id"`
	Status      string                        `json:"status"` // "running", "completed"
	Result      module.Result                 `json:"result,omitempty"`
	Goals       []string                      `json:"goals,omitempty"`
	Revision    string                        `json:"revision,omitempty"`
	StartedAt   time.Time                     `json:"started_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
	Duration    time.Duration                 `json:"duration,omitempty"`
	Overhead    time.Duration                 `json:"overhead,omitempty"`
	Failures    []string                      `json:"failures,omitempty"`
	Modules     map[module.Name]*ModuleStatus `json:"-"`
}

// ModuleList returns the build's modules sorted by name.
func (b *BuildStatus) ModuleList() []ModuleStatus {
	out := make([]ModuleStatus, 0, len(b.Modules))
	for _, m := range b.Modules {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module.Compare(out[j].Module) < 0 })
	return out
}

func (b *BuildStatus) clone() *BuildStatus {
	cp := *b
	cp.Modules = make(map[module.Name]*ModuleStatus, len(b.Modules))
	for k, m := range b.Modules {
		mc := *m
		mc.Steps = append([]module.ExecutedStep(nil), m.Steps...)
		cp.Modules[k] = &mc
	}
	return &cp
}

// ModuleStateProjection maintains an in-memory view of module state per build,
// reconstructed from events stored in the event store.
type ModuleStateProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildStatus
	maxSize  int
	lastSync time.Time
}

// NewModuleStateProjection creates a new projection backed by the given store.
func NewModuleStateProjection(store Store, maxBuilds int) *ModuleStateProjection {
	if maxBuilds <= 0 {
		maxBuilds = 50
	}
	return &ModuleStateProjection{
		store:   store,
		builds:  make(map[string]*BuildStatus),
		maxSize: maxBuilds,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *ModuleStateProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProjectionRebuildFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildStatus)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *ModuleStateProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
	p.pruneLocked()
}

func (p *ModuleStateProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	build, exists := p.builds[buildID]
	if !exists {
		build = &BuildStatus{
			BuildID:   buildID,
			Status:    buildStatusRunning,
			StartedAt: event.Timestamp(),
			Modules:   make(map[module.Name]*ModuleStatus),
		}
		p.builds[buildID] = build
	}

	switch event.Type() {
	case TypeBuildStarted:
		var meta BuildStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err != nil {
			return
		}
		build.StartedAt = event.Timestamp()
		build.Goals = meta.Goals
		build.Revision = meta.Revision
		for _, name := range meta.Modules {
			moduleLocked(build, name)
		}

	case TypeModuleStarted, TypeModuleResultSet, TypeExecutedStepsUpdated, TypeModuleEnded:
		var payload modulePayload
		if err := json.Unmarshal(event.Payload(), &payload); err != nil {
			return
		}
		applyModuleEvent(moduleLocked(build, payload.Module), event.Type(), payload, event.Timestamp())

	case TypeBuildCompleted:
		var meta BuildCompletedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err != nil {
			return
		}
		at := event.Timestamp()
		build.CompletedAt = &at
		build.Status = buildStatusCompleted
		build.Result = meta.Result
		build.Duration = meta.Duration
		build.Overhead = meta.Overhead
		build.Failures = meta.Failures
	}
}

func moduleLocked(build *BuildStatus, name module.Name) *ModuleStatus {
	m, ok := build.Modules[name]
	if !ok {
		m = &ModuleStatus{Module: name, State: module.StateNotStarted}
		build.Modules[name] = m
	}
	return m
}

func applyModuleEvent(m *ModuleStatus, eventType string, payload modulePayload, at time.Time) {
	switch eventType {
	case TypeModuleStarted:
		m.State = module.StateStarted
		m.StartedAt = &at
		m.EndedAt = nil
	case TypeModuleResultSet:
		m.Result = payload.Result
	case TypeExecutedStepsUpdated:
		m.Steps = payload.Steps
	case TypeModuleEnded:
		m.EndedAt = &at
		if m.Result != "" {
			m.State = module.StateFor(m.Result)
		}
	}
}

// pruneLocked drops the oldest completed builds beyond maxSize.
func (p *ModuleStateProjection) pruneLocked() {
	if len(p.builds) <= p.maxSize {
		return
	}
	completed := make([]*BuildStatus, 0, len(p.builds))
	for _, b := range p.builds {
		if b.Status != buildStatusRunning {
			completed = append(completed, b)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].StartedAt.Before(completed[j].StartedAt) })
	for _, b := range completed {
		if len(p.builds) <= p.maxSize {
			return
		}
		delete(p.builds, b.BuildID)
	}
}

// GetBuild returns a copy of the status of a build.
func (p *ModuleStateProjection) GetBuild(buildID string) (*BuildStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	build, exists := p.builds[buildID]
	if !exists {
		return nil, false
	}
	return build.clone(), true
}

// GetModule returns the status of one module of a build.
func (p *ModuleStateProjection) GetModule(buildID string, name module.Name) (ModuleStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	build, ok := p.builds[buildID]
	if !ok {
		return ModuleStatus{}, false
	}
	m, ok := build.Modules[name]
	if !ok {
		return ModuleStatus{}, false
	}
	cp := *m
	cp.Steps = append([]module.ExecutedStep(nil), m.Steps...)
	return cp, true
}

// GetHistory returns all tracked builds, newest first.
func (p *ModuleStateProjection) GetHistory() []*BuildStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*BuildStatus, 0, len(p.builds))
	for _, b := range p.builds {
		out = append(out, b.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *ModuleStateProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
