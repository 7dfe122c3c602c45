package reporter

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
)

// Options are passed to every reporter factory.
type Options struct {
	// OutputDir is where file-producing reporters write.
	OutputDir string
	Logger    *slog.Logger
}

// Factory creates a reporter instance. One instance is shared by every
// module that names the reporter.
type Factory func(opts Options) (Reporter, error)

// Registry maps reporter names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the built-in reporters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("log", NewLog)
	_ = r.Register("summary", NewSummary)
	return r
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.ValidationError("reporter name and factory are required").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errors.ValidationError(fmt.Sprintf("reporter %s already registered", name)).
			WithContext("reporter", name).
			Build()
	}
	r.factories[name] = f
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build instantiates the named reporter.
func (r *Registry) Build(name string, opts Options) (Reporter, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("unknown reporter %q", name)).
			WithContext("reporter", name).
			WithContext("known", r.Names()).
			Build()
	}
	rep, err := f(opts)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryReporter, "create reporter").
			WithContext("reporter", name).
			Build()
	}
	return rep, nil
}
