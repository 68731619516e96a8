// ABOUTME: Command router: matches trigger-prefixed text to plugin handlers
// ABOUTME: Resolves ties by plugin load order and isolates handler failures

package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcbot/arcbot/internal/bot"
	"github.com/arcbot/arcbot/internal/plugin"
)

// UnknownCommandError reports trigger-prefixed text whose first token matches
// no Active plugin's commands. Non-fatal: it is reported and optionally echoed
// back to the originating channel.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

// HandlerError wraps a handler failure with plugin and command context.
// Caught per invocation; never crashes the worker.
type HandlerError struct {
	Plugin  string
	Command string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("plugin %q command %q: %v", e.Plugin, e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Result describes what Dispatch did with a message.
type Result int

const (
	// ResultIgnored means the text was not a command; nothing happened.
	ResultIgnored Result = iota
	// ResultHandled means exactly one handler ran successfully.
	ResultHandled
	// ResultUnknown means the trigger matched but no command did.
	ResultUnknown
	// ResultFailed means the handler ran and returned an error or panicked.
	ResultFailed
)

// Message is one inbound text event, already decoded by a worker.
type Message struct {
	Text      string
	ChannelID string
	AuthorID  string
}

// PluginSource yields the Active plugin instances in load order.
// Implemented by *plugin.Registry.
type PluginSource interface {
	Active() []*plugin.Instance
}

// route binds a command name to its owning plugin's handler.
type route struct {
	owner   *plugin.Instance
	handler plugin.Handler
}

// Router dispatches trigger-prefixed messages to plugin handlers. The lookup
// table is built from the registry after load; the registry never mutates
// its Active set concurrently with dispatch, so the table needs no lock.
type Router struct {
	trigger string
	plugins PluginSource
	replier bot.Replier
	logger  *slog.Logger
	table   map[string]route
}

// NewRouter creates a Router and builds its lookup table from the Active
// plugin set. Call Rebuild after any later load/unload phase.
func NewRouter(trigger string, plugins PluginSource, replier bot.Replier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		trigger: trigger,
		plugins: plugins,
		replier: replier,
		logger:  logger.With("component", "router"),
	}
	r.Rebuild()
	return r
}

// Rebuild snapshots the Active plugins' declared commands into the lookup
// table. When two plugins declare the same command, the one loaded earlier
// wins; the ambiguity is a warning, not an error.
func (r *Router) Rebuild() {
	table := make(map[string]route)

	for _, inst := range r.plugins.Active() {
		for _, spec := range inst.Descriptor.Commands {
			handler := inst.Handler(spec.Name)
			if handler == nil {
				continue
			}
			if existing, taken := table[spec.Name]; taken {
				r.logger.Warn("ambiguous command, earlier plugin wins",
					"command", spec.Name,
					"winner", existing.owner.Descriptor.Name,
					"loser", inst.Descriptor.Name,
				)
				continue
			}
			table[spec.Name] = route{owner: inst, handler: handler}
		}
	}

	r.table = table
	r.logger.Debug("command table rebuilt", "commands", len(table))
}

// Commands returns the routable command names with their owning plugin.
// Used by the help surfaces and the debug console.
func (r *Router) Commands() map[string]string {
	out := make(map[string]string, len(r.table))
	for name, rt := range r.table {
		out[name] = rt.owner.Descriptor.Name
	}
	return out
}

// Dispatch routes one message. Text without the trigger prefix is ignored
// without error. Handler errors and panics are contained here and reported
// with plugin and command context.
func (r *Router) Dispatch(ctx context.Context, msg Message) (Result, error) {
	if !strings.HasPrefix(msg.Text, r.trigger) {
		return ResultIgnored, nil
	}

	stripped := strings.TrimPrefix(msg.Text, r.trigger)
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return ResultIgnored, nil
	}

	name := fields[0]
	rt, ok := r.table[name]
	if !ok {
		r.logger.Debug("unknown command", "command", name, "channel", msg.ChannelID)
		r.echo(ctx, msg.ChannelID, fmt.Sprintf("unknown command: %s", name))
		return ResultUnknown, &UnknownCommandError{Command: name}
	}

	inv := &plugin.Invocation{
		Command:   name,
		Args:      fields[1:],
		Text:      strings.TrimSpace(stripped),
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
	}
	if r.replier != nil {
		channelID := msg.ChannelID
		inv.Reply = func(ctx context.Context, message string) error {
			return r.replier.Say(ctx, channelID, message)
		}
	}

	if err := r.invoke(ctx, rt, inv); err != nil {
		herr := &HandlerError{
			Plugin:  rt.owner.Descriptor.Name,
			Command: name,
			Err:     err,
		}
		r.logger.Error("handler failed",
			"plugin", herr.Plugin,
			"command", herr.Command,
			"channel", msg.ChannelID,
			"error", err,
		)
		return ResultFailed, herr
	}

	return ResultHandled, nil
}

// invoke runs a handler with panic containment.
func (r *Router) invoke(ctx context.Context, rt route, inv *plugin.Invocation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return rt.handler(ctx, inv)
}

// echo best-effort surfaces a routing problem to the originating channel.
func (r *Router) echo(ctx context.Context, channelID, message string) {
	if r.replier == nil || channelID == "" {
		return
	}
	if err := r.replier.Say(ctx, channelID, message); err != nil {
		r.logger.Debug("echo failed", "channel", channelID, "error", err)
	}
}
