// Package plugin provides arcbot's plugin system.
//
// # Overview
//
// A plugin is an independently loadable unit contributing commands and
// handlers, with declared dependencies on other plugins. Descriptors come
// from two places:
//
//   - TOML manifests discovered in the configured plugin directory, whose
//     entry field names a factory compiled into the binary
//   - builtin plugins that register a descriptor and factory directly
//
// # Lifecycle
//
// Load resolves a topological order over declared dependencies, then
// initializes plugins strictly in that order:
//
//	Loaded -> Initialized -> Active
//	Loaded -> Failed               (Init returned an error)
//	Loaded -> Skipped              (a transitive dependency Failed)
//	Active -> Unloaded             (shutdown, reverse order)
//
// A dependency cycle or a missing dependency aborts the entire load with
// zero plugins Active. An individual init failure is isolated: only the
// failing plugin and its transitive dependents are affected.
//
// # Dispatch contract
//
// Handlers implement
//
//	func(ctx context.Context, inv *Invocation) error
//
// and are looked up by command name at dispatch time. No reflection is
// involved at runtime.
package plugin
