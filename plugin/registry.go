package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound reports a plugin name with no registered factory, after any
// permitted dynamic load attempt.
var ErrNotFound = errors.New("plugin: not found")

type entry[F any] struct {
	factory     F
	description string
}

// Registry maps case-sensitive plugin names to factories, one namespace
// per role. The zero value is not usable; call NewRegistry. Registration
// and lookup are safe for concurrent use, including from package init.
type Registry struct {
	mu         sync.RWMutex
	shared     bool
	loader     *loader
	log        *slog.Logger
	inputs     map[string]entry[InputFactory]
	processors map[string]entry[ProcessorFactory]
	outputs    map[string]entry[OutputFactory]
}

// NewRegistry returns an empty registry with dynamic loading disabled.
func NewRegistry() *Registry {
	return &Registry{
		loader:     newLoader(),
		inputs:     make(map[string]entry[InputFactory]),
		processors: make(map[string]entry[ProcessorFactory]),
		outputs:    make(map[string]entry[OutputFactory]),
	}
}

// Default is the process-wide registry that built-in plugins register
// into from their package init functions.
var Default = NewRegistry()

// SetSharedLibraryAllowed enables or disables resolving missing names
// against shared objects on the search path. Disabled by default.
func (r *Registry) SetSharedLibraryAllowed(allowed bool) {
	r.mu.Lock()
	r.shared = allowed
	r.mu.Unlock()
}

// SetSearchPath replaces the directories scanned for shared objects.
func (r *Registry) SetSearchPath(dirs []string) {
	r.mu.Lock()
	r.loader.searchPath = append([]string(nil), dirs...)
	r.mu.Unlock()
}

// SetLogger directs load diagnostics to log instead of slog.Default().
func (r *Registry) SetLogger(log *slog.Logger) {
	r.mu.Lock()
	r.log = log
	r.mu.Unlock()
}

func (r *Registry) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return slog.Default()
}

// RegisterInput binds an input factory to name, overwriting any earlier
// binding. Nil factories are ignored.
func (r *Registry) RegisterInput(name, description string, f InputFactory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	r.inputs[name] = entry[InputFactory]{f, description}
	r.mu.Unlock()
}

// RegisterProcessor binds a processor factory to name, overwriting any
// earlier binding. Nil factories are ignored.
func (r *Registry) RegisterProcessor(name, description string, f ProcessorFactory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	r.processors[name] = entry[ProcessorFactory]{f, description}
	r.mu.Unlock()
}

// RegisterOutput binds an output factory to name, overwriting any earlier
// binding. Nil factories are ignored.
func (r *Registry) RegisterOutput(name, description string, f OutputFactory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	r.outputs[name] = entry[OutputFactory]{f, description}
	r.mu.Unlock()
}

// GetInput returns the input factory registered under name. A miss with
// dynamic loading allowed first tries to load the matching shared object,
// whose init functions are expected to self-register.
func (r *Registry) GetInput(name string) (InputFactory, error) {
	e, ok, lerr := lookup(r, r.inputs, RoleInput, name)
	if ok {
		return e.factory, nil
	}
	return nil, notFound("input", name, lerr)
}

// GetProcessor returns the processor factory registered under name,
// attempting a dynamic load on a miss when allowed.
func (r *Registry) GetProcessor(name string) (ProcessorFactory, error) {
	e, ok, lerr := lookup(r, r.processors, RoleProcessor, name)
	if ok {
		return e.factory, nil
	}
	return nil, notFound("processor", name, lerr)
}

// GetOutput returns the output factory registered under name, attempting
// a dynamic load on a miss when allowed.
func (r *Registry) GetOutput(name string) (OutputFactory, error) {
	e, ok, lerr := lookup(r, r.outputs, RoleOutput, name)
	if ok {
		return e.factory, nil
	}
	return nil, notFound("output", name, lerr)
}

// notFound wraps ErrNotFound, attaching the dynamic load failure when one
// occurred so the caller sees why the shared object could not serve.
func notFound(role, name string, loadErr error) error {
	if loadErr != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrNotFound, role, name, loadErr)
	}
	return fmt.Errorf("%w: %s %q", ErrNotFound, role, name)
}

// lookup checks the role map, and on a miss loads the shared object named
// after the plugin and checks again. A failed load is returned alongside
// the miss.
func lookup[F any](r *Registry, m map[string]entry[F], role Role, name string) (entry[F], bool, error) {
	r.mu.RLock()
	e, ok := m[name]
	shared := r.shared
	r.mu.RUnlock()
	if ok || !shared {
		return e, ok, nil
	}

	if err := r.loader.loadByName(role, name); err != nil {
		r.logger().Debug("plugin load failed", "role", role.String(), "name", name, "error", err)
		return e, false, err
	}
	r.mu.RLock()
	e, ok = m[name]
	r.mu.RUnlock()
	return e, ok, nil
}

// LoadAll scans the search path and loads every shared object matching
// the plugin naming convention, each at most once. It does nothing when
// dynamic loading is disabled.
func (r *Registry) LoadAll() {
	r.mu.RLock()
	shared := r.shared
	r.mu.RUnlock()
	if !shared {
		return
	}
	for _, err := range r.loader.loadAll() {
		r.logger().Warn("plugin load failed", "error", err)
	}
}

// List returns a textual inventory of all registered plugins, grouped by
// role and aligned on the name column. When loadAll is true and dynamic
// loading is allowed, the search path is loaded first.
func (r *Registry) List(loadAll bool) string {
	if loadAll {
		r.LoadAll()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	width := 0
	for _, names := range [][]string{keys(r.inputs), keys(r.processors), keys(r.outputs)} {
		for _, n := range names {
			if len(n) > width {
				width = len(n)
			}
		}
	}

	var b strings.Builder
	listRole(&b, "Input plugins", r.inputs, width)
	listRole(&b, "Processor plugins", r.processors, width)
	listRole(&b, "Output plugins", r.outputs, width)
	return b.String()
}

func listRole[F any](b *strings.Builder, title string, m map[string]entry[F], width int) {
	fmt.Fprintf(b, "%s:\n", title)
	for _, name := range keys(m) {
		fmt.Fprintf(b, "  %-*s  %s\n", width, name, m[name].description)
	}
	b.WriteByte('\n')
}

func keys[F any](m map[string]entry[F]) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Package-level helpers operating on [Default], for use from plugin
// package init functions.

// RegisterInput registers an input factory in the default registry.
func RegisterInput(name, description string, f InputFactory) {
	Default.RegisterInput(name, description, f)
}

// RegisterProcessor registers a processor factory in the default registry.
func RegisterProcessor(name, description string, f ProcessorFactory) {
	Default.RegisterProcessor(name, description, f)
}

// RegisterOutput registers an output factory in the default registry.
func RegisterOutput(name, description string, f OutputFactory) {
	Default.RegisterOutput(name, description, f)
}
