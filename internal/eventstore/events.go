package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Event type names.
const (
	TypeBuildStarted         = "BuildStarted"
	TypeModuleStarted        = "ModuleStarted"
	TypeModuleResultSet      = "ModuleResultSet"
	TypeExecutedStepsUpdated = "ExecutedStepsUpdated"
	TypeModuleEnded          = "ModuleEnded"
	TypeBuildCompleted       = "BuildCompleted"
)

// BuildStartedMeta describes the build being bridged.
type BuildStartedMeta struct {
	Goals    []string      `json:"goals"`
	Revision string        `json:"revision,omitempty"` // HEAD of the workspace, when known
	Modules  []module.Name `json:"modules"`            // registered modules
	Host     string        `json:"host,omitempty"`
}

// BuildStarted is emitted when a bridged build begins.
type BuildStarted struct {
	BaseEvent
	Meta BuildStartedMeta `json:"meta"`
}

// NewBuildStarted creates a BuildStarted event with typed metadata.
func NewBuildStarted(buildID string, meta BuildStartedMeta, at time.Time) (*BuildStarted, error) {
	base, err := newBase(buildID, TypeBuildStarted, meta, at)
	if err != nil {
		return nil, err
	}
	return &BuildStarted{BaseEvent: base, Meta: meta}, nil
}

type modulePayload struct {
	Module module.Name           `json:"module"`
	Result module.Result         `json:"result,omitempty"`
	Steps  []module.ExecutedStep `json:"steps,omitempty"`
}

// ModuleStarted is emitted when a module's proxy is started.
type ModuleStarted struct {
	BaseEvent
	Module module.Name
}

// NewModuleStarted creates a ModuleStarted event.
func NewModuleStarted(buildID string, name module.Name, at time.Time) (*ModuleStarted, error) {
	base, err := newBase(buildID, TypeModuleStarted, modulePayload{Module: name}, at)
	if err != nil {
		return nil, err
	}
	return &ModuleStarted{BaseEvent: base, Module: name}, nil
}

// ModuleResultSet is emitted when a module's result is recorded.
type ModuleResultSet struct {
	BaseEvent
	Module module.Name
	Result module.Result
}

// NewModuleResultSet creates a ModuleResultSet event.
func NewModuleResultSet(buildID string, name module.Name, result module.Result, at time.Time) (*ModuleResultSet, error) {
	if !result.IsValid() {
		return nil, errors.ValidationError("invalid module result").
			WithContext("build_id", buildID).
			WithContext("result", string(result)).
			Build()
	}
	base, err := newBase(buildID, TypeModuleResultSet, modulePayload{Module: name, Result: result}, at)
	if err != nil {
		return nil, err
	}
	return &ModuleResultSet{BaseEvent: base, Module: name, Result: result}, nil
}

// ExecutedStepsUpdated carries the full executed-step list of a module.
type ExecutedStepsUpdated struct {
	BaseEvent
	Module module.Name
	Steps  []module.ExecutedStep
}

// NewExecutedStepsUpdated creates an ExecutedStepsUpdated event.
func NewExecutedStepsUpdated(buildID string, name module.Name, steps []module.ExecutedStep, at time.Time) (*ExecutedStepsUpdated, error) {
	base, err := newBase(buildID, TypeExecutedStepsUpdated, modulePayload{Module: name, Steps: steps}, at)
	if err != nil {
		return nil, err
	}
	return &ExecutedStepsUpdated{BaseEvent: base, Module: name, Steps: steps}, nil
}

// ModuleEnded is emitted when a module's proxy is closed.
type ModuleEnded struct {
	BaseEvent
	Module module.Name
}

// NewModuleEnded creates a ModuleEnded event.
func NewModuleEnded(buildID string, name module.Name, at time.Time) (*ModuleEnded, error) {
	base, err := newBase(buildID, TypeModuleEnded, modulePayload{Module: name}, at)
	if err != nil {
		return nil, err
	}
	return &ModuleEnded{BaseEvent: base, Module: name}, nil
}

// BuildCompletedMeta is the final outcome of a bridged build.
type BuildCompletedMeta struct {
	Result   module.Result `json:"result"`
	Duration time.Duration `json:"duration"`
	Overhead time.Duration `json:"overhead"`
	Failures []string      `json:"failures,omitempty"`
}

// BuildCompleted is emitted once the host has decided the build result.
type BuildCompleted struct {
	BaseEvent
	Meta BuildCompletedMeta
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, meta BuildCompletedMeta, at time.Time) (*BuildCompleted, error) {
	base, err := newBase(buildID, TypeBuildCompleted, meta, at)
	if err != nil {
		return nil, err
	}
	return &BuildCompleted{BaseEvent: base, Meta: meta}, nil
}

func newBase(buildID, eventType string, payload any, at time.Time) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   data,
	}, nil
}
