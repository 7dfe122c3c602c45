package proxy

import (
	"context"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Store records a module's build lifecycle as events in an event store and,
// when a projection is attached, keeps that read model current.
type Store struct {
	buildID    string
	name       module.Name
	store      eventstore.Store
	projection *eventstore.ModuleStateProjection
	now        func() time.Time
}

// NewStore returns a proxy appending to store. projection may be nil.
func NewStore(buildID string, name module.Name, store eventstore.Store, projection *eventstore.ModuleStateProjection) *Store {
	return &Store{buildID: buildID, name: name, store: store, projection: projection, now: time.Now}
}

// WithClock returns a copy of s that timestamps events with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

// StoreFactory returns a Factory producing Store proxies over one store.
func StoreFactory(store eventstore.Store, projection *eventstore.ModuleStateProjection) Factory {
	return func(buildID string, name module.Name) (BuildProxy, error) {
		return NewStore(buildID, name, store, projection), nil
	}
}

func (s *Store) Start(ctx context.Context) error {
	ev, err := eventstore.NewModuleStarted(s.buildID, s.name, s.now())
	if err != nil {
		return err
	}
	return s.append(ctx, ev)
}

func (s *Store) SetResult(ctx context.Context, result module.Result) error {
	ev, err := eventstore.NewModuleResultSet(s.buildID, s.name, result, s.now())
	if err != nil {
		return err
	}
	return s.append(ctx, ev)
}

func (s *Store) SetExecutedSteps(ctx context.Context, steps []module.ExecutedStep) error {
	ev, err := eventstore.NewExecutedStepsUpdated(s.buildID, s.name, steps, s.now())
	if err != nil {
		return err
	}
	return s.append(ctx, ev)
}

func (s *Store) End(ctx context.Context) error {
	ev, err := eventstore.NewModuleEnded(s.buildID, s.name, s.now())
	if err != nil {
		return err
	}
	return s.append(ctx, ev)
}

func (s *Store) append(ctx context.Context, ev eventstore.Event) error {
	if err := eventstore.AppendEvent(ctx, s.store, ev); err != nil {
		return err
	}
	if s.projection != nil {
		s.projection.Apply(ev)
	}
	return nil
}
