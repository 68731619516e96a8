// ABOUTME: Error types for plugin loading and lifecycle management
// ABOUTME: Cycle and missing-dependency errors name the plugins involved

package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicatePlugin indicates two descriptors share the same name.
var ErrDuplicatePlugin = errors.New("duplicate plugin name")

// ErrUnknownEntry indicates a manifest names an entry point with no
// registered factory.
var ErrUnknownEntry = errors.New("unknown plugin entry point")

// ErrPluginNotFound indicates the named plugin is not registered.
var ErrPluginNotFound = errors.New("plugin not found")

// DependencyCycleError reports a dependency chain that returns to itself.
// Load aborts entirely: a partially loaded plugin set risks inconsistent
// command routing.
type DependencyCycleError struct {
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// MissingDependencyError reports a declared dependency that is absent from
// the loaded descriptor set.
type MissingDependencyError struct {
	Plugin     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("plugin %q depends on %q, which is not available", e.Plugin, e.Dependency)
}

// InitError wraps a plugin's init failure with its name. It is isolated
// per plugin and never fatal to the process.
type InitError struct {
	Plugin string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("plugin %q init failed: %v", e.Plugin, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
