// Package config loads and validates the arcbot YAML configuration.
//
// Configuration is read once at startup and treated as read-only for the
// lifetime of the process. Environment variables referenced as ${VAR} are
// expanded before parsing, and duration fields accept Go duration strings
// ("30s", "2m").
//
// Validation is fail-fast: an invalid shard assignment, worker count, or an
// enabled auxiliary surface missing its credential aborts startup before any
// connection is attempted.
package config
