// Package probe defines the smoke checks the harness can run and the
// registry that names them. Checks are registered as factories and bound
// to an Env at build time, so the set of checks for a run is always an
// explicit list of names, never discovered by reflection.
package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/apiprobe/apiprobe/internal/console"
	"github.com/apiprobe/apiprobe/internal/runner"
	"github.com/apiprobe/apiprobe/shared/httpclient"
)

var (
	// ErrUnknownCheck is returned when a requested check name is not registered.
	ErrUnknownCheck = errors.New("unknown check")

	// ErrDuplicateCheck is returned when a check name is registered twice.
	ErrDuplicateCheck = errors.New("check already registered")
)

// Env carries the shared collaborators a check runs with.
type Env struct {
	Client *httpclient.Client
	Sink   *console.Sink
	Logger *slog.Logger
}

func (e Env) log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Factory builds a runnable job bound to an Env.
type Factory func(env Env) runner.Job

// Registry maps check names to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a named factory. Registering an empty name, a nil factory,
// or a name that already exists is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("check name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("check %q: factory must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCheck, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error, for wiring up built-ins
// at startup.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Build constructs the named check bound to env.
func (r *Registry) Build(name string, env Env) (runner.Job, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return runner.Job{}, fmt.Errorf("%w: %q", ErrUnknownCheck, name)
	}
	return factory(env), nil
}

// BuildAll constructs the named checks in the given order. An empty names
// list selects every registered check in name order.
func (r *Registry) BuildAll(names []string, env Env) ([]runner.Job, error) {
	if len(names) == 0 {
		names = r.Names()
	}

	jobs := make([]runner.Job, 0, len(names))
	for _, name := range names {
		job, err := r.Build(name, env)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Names returns all registered check names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
