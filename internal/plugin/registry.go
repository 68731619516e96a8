// ABOUTME: Thread-safe plugin registry with dependency-ordered lifecycle
// ABOUTME: Resolves a topological load order, isolates init failures per plugin

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// State is a plugin instance's lifecycle state.
type State int

const (
	// StateLoaded means the descriptor is registered but not initialized.
	StateLoaded State = iota
	// StateInitialized means Init returned but the plugin is not yet serving.
	StateInitialized
	// StateActive means the plugin's commands are routable.
	StateActive
	// StateFailed means Init returned an error.
	StateFailed
	// StateSkipped means a transitive dependency is Failed; Init never ran.
	StateSkipped
	// StateUnloaded means the plugin was shut down.
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Instance is a Descriptor bound to a running lifecycle state. Instances are
// owned exclusively by the Registry; the router holds non-owning references.
type Instance struct {
	Descriptor *Descriptor
	State      State
	Err        error // init error when State is StateFailed

	plugin   Plugin
	handlers map[string]Handler
}

// Handler returns the handler for a declared command, or nil.
func (in *Instance) Handler(command string) Handler {
	return in.handlers[command]
}

// EnvFunc builds the init environment for a named plugin.
type EnvFunc func(name string) *Env

// Registry loads plugin descriptors, resolves their dependency order, and
// drives the init/teardown lifecycle. The instance set is mutated only
// during Load and Unload, never concurrently with dispatch.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]*Instance
	order     []string // registration order, also load-order tie break
	topo      []string // valid after a successful Load
	loaded    bool
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]*Instance),
		logger:    logger.With("component", "plugins"),
	}
}

// RegisterFactory registers a plugin entry point under a name manifests can
// refer to.
func (r *Registry) RegisterFactory(entry string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[entry]; exists {
		return fmt.Errorf("factory %q already registered", entry)
	}
	r.factories[entry] = f
	return nil
}

// Register adds a descriptor to the registry in Loaded state.
// Returns ErrDuplicatePlugin if the name is taken.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, d.Name)
	}

	r.instances[d.Name] = &Instance{Descriptor: d, State: StateLoaded}
	r.order = append(r.order, d.Name)

	r.logger.Debug("plugin registered",
		"name", d.Name,
		"version", d.Version,
		"dependencies", d.Dependencies,
		"commands", len(d.Commands),
	)
	return nil
}

// RegisterBuiltin registers a compiled-in plugin: its factory and its
// descriptor in one step.
func (r *Registry) RegisterBuiltin(d *Descriptor, f Factory) error {
	if err := d.validate(); err != nil {
		return err
	}
	if err := r.RegisterFactory(d.Entry, f); err != nil {
		return err
	}
	return r.Register(d)
}

// resolve computes a topological order over the registered descriptors.
// Registration order breaks ties so the result is deterministic.
// The caller must hold r.mu.
func (r *Registry) resolve() ([]string, error) {
	index := make(map[string]int, len(r.order))
	for i, name := range r.order {
		index[name] = i
	}

	// Verify every declared dependency exists before ordering anything.
	for _, name := range r.order {
		for _, dep := range r.instances[name].Descriptor.Dependencies {
			if _, ok := r.instances[dep]; !ok {
				return nil, &MissingDependencyError{Plugin: name, Dependency: dep}
			}
		}
	}

	// Kahn's algorithm over the dependency graph.
	indegree := make(map[string]int, len(r.order))
	dependents := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		indegree[name] = len(r.instances[name].Descriptor.Dependencies)
		for _, dep := range r.instances[name].Descriptor.Dependencies {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range r.order {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	topo := make([]string, 0, len(r.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
		name := ready[0]
		ready = ready[1:]
		topo = append(topo, name)

		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(topo) != len(r.order) {
		return nil, &DependencyCycleError{Cycle: r.findCycle(indegree)}
	}
	return topo, nil
}

// findCycle walks the leftover nodes of a failed Kahn pass and returns one
// cycle, closed on its starting plugin. The caller must hold r.mu.
func (r *Registry) findCycle(indegree map[string]int) []string {
	leftover := make(map[string]bool)
	for _, name := range r.order {
		if indegree[name] > 0 {
			leftover[name] = true
		}
	}

	for _, start := range r.order {
		if !leftover[start] {
			continue
		}
		// Follow dependencies within the leftover set until a node repeats.
		path := []string{start}
		at := make(map[string]int)
		at[start] = 0
		current := start
		for {
			next := ""
			for _, dep := range r.instances[current].Descriptor.Dependencies {
				if leftover[dep] {
					next = dep
					break
				}
			}
			if next == "" {
				break
			}
			if pos, seen := at[next]; seen {
				cycle := append([]string{}, path[pos:]...)
				return append(cycle, next)
			}
			at[next] = len(path)
			path = append(path, next)
			current = next
		}
	}
	return nil
}

// Load resolves dependency order and initializes every plugin.
//
// Cycles and missing dependencies abort the whole load with zero plugins
// Active. A plugin whose Init fails is marked Failed; its transitive
// dependents are marked Skipped and never initialized; unrelated plugins
// proceed. Returns the instances in load order.
func (r *Registry) Load(ctx context.Context, envFor EnvFunc) ([]*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topo, err := r.resolve()
	if err != nil {
		return nil, err
	}

	// Entry points must resolve before anything initializes: a bad manifest
	// aborts atomically, like a missing dependency.
	for _, name := range topo {
		d := r.instances[name].Descriptor
		if _, ok := r.factories[d.Entry]; !ok {
			return nil, fmt.Errorf("%w: plugin %q entry %q", ErrUnknownEntry, d.Name, d.Entry)
		}
	}

	for _, name := range topo {
		inst := r.instances[name]
		d := inst.Descriptor

		if dep := r.failedDependency(d); dep != "" {
			inst.State = StateSkipped
			r.logger.Warn("plugin skipped",
				"name", name,
				"blocked_by", dep,
			)
			continue
		}

		inst.plugin = r.factories[d.Entry]()

		env := envFor(name)
		if env.Log == nil {
			env.Log = r.logger.With("plugin", name)
		}

		if err := r.initPlugin(ctx, inst, env); err != nil {
			inst.State = StateFailed
			inst.Err = &InitError{Plugin: name, Err: err}
			r.logger.Error("plugin init failed", "name", name, "error", err)
			continue
		}
		inst.State = StateInitialized

		inst.handlers = r.collectHandlers(inst)
		inst.State = StateActive
		r.logger.Info("plugin active",
			"name", name,
			"version", d.Version,
			"commands", len(inst.handlers),
		)
	}

	r.topo = topo
	r.loaded = true

	result := make([]*Instance, 0, len(topo))
	for _, name := range topo {
		result = append(result, r.instances[name])
	}
	return result, nil
}

// initPlugin runs Init with panic containment so one misbehaving plugin
// cannot take down the load phase.
func (r *Registry) initPlugin(ctx context.Context, inst *Instance, env *Env) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during init: %v", rec)
		}
	}()
	return inst.plugin.Init(ctx, env)
}

// collectHandlers keeps only handlers for declared commands. Undeclared
// handlers are dropped with a warning so the router's table always matches
// the descriptors.
func (r *Registry) collectHandlers(inst *Instance) map[string]Handler {
	declared := make(map[string]struct{}, len(inst.Descriptor.Commands))
	for _, cmd := range inst.Descriptor.Commands {
		declared[cmd.Name] = struct{}{}
	}

	all := inst.plugin.Handlers()
	handlers := make(map[string]Handler, len(declared))
	for name, h := range all {
		if _, ok := declared[name]; !ok {
			r.logger.Warn("plugin handler not declared in manifest, ignoring",
				"plugin", inst.Descriptor.Name,
				"command", name,
			)
			continue
		}
		handlers[name] = h
	}
	for _, cmd := range inst.Descriptor.Commands {
		if _, ok := handlers[cmd.Name]; !ok {
			r.logger.Warn("declared command has no handler",
				"plugin", inst.Descriptor.Name,
				"command", cmd.Name,
			)
		}
	}
	return handlers
}

// failedDependency returns the first direct dependency that is not Active,
// or "". Skipped and Failed dependencies both block a dependent; the caller
// must hold r.mu.
func (r *Registry) failedDependency(d *Descriptor) string {
	for _, dep := range d.Dependencies {
		if r.instances[dep].State != StateActive {
			return dep
		}
	}
	return ""
}

// Unload shuts down Active plugins in reverse load order, dependents before
// dependencies. Shutdown errors are logged, not propagated: teardown always
// runs to completion.
func (r *Registry) Unload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return
	}

	for i := len(r.topo) - 1; i >= 0; i-- {
		inst := r.instances[r.topo[i]]
		if inst.State != StateActive {
			continue
		}
		if err := r.shutdownPlugin(ctx, inst); err != nil {
			r.logger.Error("plugin shutdown failed",
				"name", inst.Descriptor.Name,
				"error", err,
			)
		}
		inst.State = StateUnloaded
		r.logger.Info("plugin unloaded", "name", inst.Descriptor.Name)
	}
	r.loaded = false
}

func (r *Registry) shutdownPlugin(ctx context.Context, inst *Instance) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during shutdown: %v", rec)
		}
	}()
	return inst.plugin.Shutdown(ctx)
}

// Active returns the Active instances in load order.
func (r *Registry) Active() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Instance
	for _, name := range r.topo {
		if inst := r.instances[name]; inst.State == StateActive {
			active = append(active, inst)
		}
	}
	return active
}

// Get returns the instance for a plugin name.
func (r *Registry) Get(name string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return inst, nil
}

// All returns every registered instance in load order (registration order
// before Load, topological order after).
func (r *Registry) All() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.topo
	if !r.loaded {
		names = r.order
	}
	result := make([]*Instance, 0, len(names))
	for _, name := range names {
		result = append(result, r.instances[name])
	}
	return result
}
