// Package command routes trigger-prefixed messages to plugin handlers.
//
// Matching is literal: text that does not start with the configured trigger
// is not a command and is dropped without error. The first token after the
// trigger selects the command; when two Active plugins declare the same
// command, the plugin loaded earlier wins and the collision is logged as a
// warning. Handler errors never propagate past the dispatch boundary.
package command
