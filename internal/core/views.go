// ABOUTME: Read-only runtime views for the core plugin and the console
// ABOUTME: Thin conversions over the registry, router, and gateway manager

package core

import (
	"context"
	"strings"
	"sync"

	"github.com/arcbot/arcbot/internal/command"
	"github.com/arcbot/arcbot/internal/console"
	"github.com/arcbot/arcbot/internal/gateway"
	"github.com/arcbot/arcbot/internal/plugins"
)

// runtimeInfo implements the core plugin's info source over the registry.
type runtimeInfo Runtime

func (r *runtimeInfo) CommandHelp() []plugins.CommandHelp {
	var out []plugins.CommandHelp
	for _, in := range r.registry.Active() {
		for _, spec := range in.Descriptor.Commands {
			out = append(out, plugins.CommandHelp{
				Plugin: in.Descriptor.Name,
				Name:   spec.Name,
				Help:   spec.Help,
			})
		}
	}
	return out
}

func (r *runtimeInfo) PluginInfo() []plugins.PluginInfo {
	var out []plugins.PluginInfo
	for _, in := range r.registry.All() {
		out = append(out, plugins.PluginInfo{
			Name:    in.Descriptor.Name,
			Version: in.Descriptor.Version,
			State:   in.State.String(),
		})
	}
	return out
}

// consoleBackend implements the operator console over the runtime.
type consoleBackend Runtime

func (b *consoleBackend) Status() console.Status {
	st := console.Status{
		Name:    b.cfg.Bot.Name,
		Uptime:  b.facade.Uptime(),
		Workers: b.cfg.Workers.Count,
	}
	if b.manager != nil {
		st.Shards = []console.ShardStatus{{
			ID:    b.cfg.Gateway.ShardID,
			State: b.manager.State().String(),
			Ping:  b.manager.Ping(),
		}}
	}
	return st
}

func (b *consoleBackend) Plugins() []console.PluginStatus {
	var out []console.PluginStatus
	for _, in := range b.registry.All() {
		ps := console.PluginStatus{
			Name:    in.Descriptor.Name,
			Version: in.Descriptor.Version,
			State:   in.State.String(),
		}
		if in.Err != nil {
			ps.Err = in.Err.Error()
		}
		out = append(out, ps)
	}
	return out
}

// Dispatch runs a command line through a capture router so the reply comes
// back to the console instead of a chat channel.
func (b *consoleBackend) Dispatch(ctx context.Context, line string) (string, error) {
	r := (*Runtime)(b)
	capture := &captureReplier{}
	router := command.NewRouter(r.cfg.Bot.Trigger, r.registry, capture, r.logger)

	res, err := router.Dispatch(ctx, command.Message{
		Text:      line,
		ChannelID: "console",
		AuthorID:  "console",
	})
	if err != nil {
		return "", err
	}
	if res == command.ResultIgnored {
		return "not a command (missing trigger " + r.cfg.Bot.Trigger + ")", nil
	}
	return capture.String(), nil
}

// SetPresence publishes presence text through the gateway manager.
func (b *consoleBackend) SetPresence(ctx context.Context, status string) error {
	if b.manager == nil {
		return gateway.ErrNotConnected
	}
	return b.manager.UpdateStatus(ctx, status)
}

// captureReplier collects replies instead of sending them to the platform.
type captureReplier struct {
	mu sync.Mutex
	b  strings.Builder
}

func (c *captureReplier) Say(ctx context.Context, channelID, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.b.Len() > 0 {
		c.b.WriteString("\n")
	}
	c.b.WriteString(message)
	return nil
}

func (c *captureReplier) Whisper(ctx context.Context, userID, message string) error {
	return c.Say(ctx, userID, message)
}

func (c *captureReplier) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}
