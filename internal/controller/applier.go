package controller

import (
	"context"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/observability"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

const defaultDedupWindow = 4096

// Applier records mutations in the event store through a Store proxy, so the
// controller's history matches a locally stored build.
type Applier struct {
	store      eventstore.Store
	projection *eventstore.ModuleStateProjection
	mirror     *Mirror

	mu     sync.Mutex
	seen   map[string]struct{}
	order  []string
	window int
}

// NewApplier returns an applier. projection and mirror may be nil.
func NewApplier(store eventstore.Store, projection *eventstore.ModuleStateProjection, mirror *Mirror) *Applier {
	return &Applier{
		store:      store,
		projection: projection,
		mirror:     mirror,
		seen:       make(map[string]struct{}),
		window:     defaultDedupWindow,
	}
}

// Apply records m. A mutation whose ID was applied recently is ignored, so
// redelivered messages are harmless.
func (a *Applier) Apply(ctx context.Context, m proxy.Mutation) error {
	if err := m.Validate(); err != nil {
		return errors.ValidationError("invalid mutation").WithCause(err).Build()
	}
	if a.duplicate(m.ID) {
		observability.DebugContext(ctx, "Skipping duplicate mutation", logfields.Op(string(m.Op)), logfields.Module(m.Module.String()))
		return nil
	}

	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	p := proxy.NewStore(m.BuildID, m.Module, a.store, a.projection).WithClock(func() time.Time { return at })
	if err := m.ApplyTo(ctx, p); err != nil {
		a.forget(m.ID)
		return errors.WrapError(err, errors.CategoryEventStore, "apply mutation").
			WithContext("build_id", m.BuildID).
			WithContext("module", m.Module.String()).
			WithContext("op", string(m.Op)).
			Retryable().
			Build()
	}

	if a.mirror != nil && a.projection != nil {
		if st, ok := a.projection.GetModule(m.BuildID, m.Module); ok {
			if err := a.mirror.Put(ctx, m.BuildID, st); err != nil {
				// The event is stored; the mirror catches up with the next mutation.
				observability.WarnContext(ctx, "Failed to mirror module state", logfields.Module(m.Module.String()), logfields.Error(err))
			}
		}
	}
	return nil
}

func (a *Applier) duplicate(id string) bool {
	if id == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[id]; ok {
		return true
	}
	a.seen[id] = struct{}{}
	a.order = append(a.order, id)
	if len(a.order) > a.window {
		delete(a.seen, a.order[0])
		a.order = a.order[1:]
	}
	return false
}

func (a *Applier) forget(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[id]; !ok {
		return
	}
	delete(a.seen, id)
	for i := len(a.order) - 1; i >= 0; i-- {
		if a.order[i] == id {
			a.order = slices.Delete(a.order, i, i+1)
			break
		}
	}
}
