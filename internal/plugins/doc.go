// ABOUTME: Package plugins holds the builtin plugins shipped with the bot
// ABOUTME: chat covers basics, core covers introspection

// Package plugins contains the plugins compiled into the bot binary. They
// go through the same registry, dependency resolution, and lifecycle as
// plugins discovered from manifests.
package plugins
