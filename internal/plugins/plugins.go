// ABOUTME: Registration of the builtin plugins
// ABOUTME: Builtins load before manifest-discovered plugins

package plugins

import (
	"fmt"

	"github.com/arcbot/arcbot/internal/plugin"
)

// RegisterBuiltins registers the chat and core plugins with the registry.
// Builtins are registered before manifests are discovered, so external
// plugins may depend on them.
func RegisterBuiltins(r *plugin.Registry, info InfoSource) error {
	if err := r.RegisterBuiltin(ChatDescriptor(), NewChat); err != nil {
		return fmt.Errorf("registering chat plugin: %w", err)
	}
	if err := r.RegisterBuiltin(CoreDescriptor(), NewCore(info)); err != nil {
		return fmt.Errorf("registering core plugin: %w", err)
	}
	return nil
}
