// ABOUTME: Plugin contract: entry point interface, handler signature, invocation
// ABOUTME: Plugins declare commands and receive a read-only environment at init

package plugin

import (
	"context"
	"log/slog"

	"github.com/arcbot/arcbot/internal/bot"
)

// CommandSpec declares one command a plugin responds to.
type CommandSpec struct {
	Name string `toml:"name"`
	Help string `toml:"help"`
}

// Invocation carries one command dispatch into a handler. It is transient:
// created by the router and discarded when the handler returns.
type Invocation struct {
	// Command is the first token after the trigger.
	Command string
	// Args are the remaining tokens.
	Args []string
	// Text is the full trigger-stripped text.
	Text string

	// ChannelID and AuthorID identify where the invocation came from.
	ChannelID string
	AuthorID  string

	// Reply sends a response back to the originating channel. Nil when no
	// reply collaborator is wired (tests, synthetic events).
	Reply func(ctx context.Context, message string) error
}

// Handler executes one command invocation.
type Handler func(ctx context.Context, inv *Invocation) error

// Env is the environment handed to a plugin at init. Everything in it is
// read-only from the plugin's point of view.
type Env struct {
	Bot    *bot.Facade
	Config map[string]any // opaque per-plugin config from the config file
	Log    *slog.Logger
}

// Plugin is the runtime entry point built by a Factory.
type Plugin interface {
	// Init prepares the plugin. It runs only after all declared
	// dependencies are Active.
	Init(ctx context.Context, env *Env) error

	// Handlers maps declared command names to their handlers. Called after
	// a successful Init.
	Handlers() map[string]Handler

	// Shutdown releases resources. Called in reverse dependency order.
	Shutdown(ctx context.Context) error
}

// Factory constructs a plugin's entry point. Factories are registered under
// the entry name a manifest refers to, so dispatch needs no reflection.
type Factory func() Plugin
