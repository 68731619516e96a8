// ABOUTME: Package core wires config, store, plugins, router, pool, and gateway
// ABOUTME: The serve command builds a Runtime and calls Run

// Package core assembles the bot. Construction order is store, facade,
// registry, then at Run time the router, worker pool, and gateway manager,
// plus the optional webhook, console, and metrics listeners. Shutdown runs
// the same order in reverse so in-flight work drains before plugins unload.
package core
