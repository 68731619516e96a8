// ABOUTME: Builtin chat plugin: ping, echo, uptime, and a small key/value memory
// ABOUTME: The memory commands persist through the bot's store

package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arcbot/arcbot/internal/plugin"
	"github.com/arcbot/arcbot/internal/store"
)

// ChatName is the chat plugin's registered name.
const ChatName = "chat"

// ChatDescriptor is the manifest equivalent for the builtin chat plugin.
func ChatDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:    ChatName,
		Version: "1.0.0",
		Entry:   ChatName,
		Commands: []plugin.CommandSpec{
			{Name: "ping", Help: "check the bot is alive"},
			{Name: "echo", Help: "repeat the given text"},
			{Name: "uptime", Help: "show how long the bot has been running"},
			{Name: "remember", Help: "remember <key> <value>: store a note"},
			{Name: "recall", Help: "recall <key>: retrieve a stored note"},
		},
	}
}

// Chat is the builtin chat plugin.
type Chat struct {
	bot   botInfo
	store store.Store
	log   *slog.Logger
}

// botInfo is the slice of the facade the chat plugin reads.
type botInfo interface {
	Name() string
	Uptime() time.Duration
}

// NewChat is the chat plugin factory.
func NewChat() plugin.Plugin {
	return &Chat{}
}

func (c *Chat) Init(ctx context.Context, env *plugin.Env) error {
	if env.Bot == nil {
		return errors.New("chat plugin requires the bot facade")
	}
	c.bot = env.Bot
	c.store = env.Bot.Store()
	c.log = env.Log
	return nil
}

func (c *Chat) Shutdown(ctx context.Context) error { return nil }

func (c *Chat) Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"ping":     c.ping,
		"echo":     c.echo,
		"uptime":   c.uptime,
		"remember": c.remember,
		"recall":   c.recall,
	}
}

func (c *Chat) ping(ctx context.Context, inv *plugin.Invocation) error {
	return inv.Reply(ctx, "pong")
}

func (c *Chat) echo(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply(ctx, "echo what?")
	}
	return inv.Reply(ctx, strings.Join(inv.Args, " "))
}

func (c *Chat) uptime(ctx context.Context, inv *plugin.Invocation) error {
	up := c.bot.Uptime().Round(time.Second)
	return inv.Reply(ctx, fmt.Sprintf("%s has been up for %s", c.bot.Name(), up))
}

func (c *Chat) remember(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) < 2 {
		return inv.Reply(ctx, "usage: remember <key> <value>")
	}
	key := inv.Args[0]
	value := strings.Join(inv.Args[1:], " ")
	if err := c.store.Set(ctx, ChatName, key, value); err != nil {
		return fmt.Errorf("storing note %q: %w", key, err)
	}
	return inv.Reply(ctx, fmt.Sprintf("remembered %q", key))
}

func (c *Chat) recall(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.Reply(ctx, "usage: recall <key>")
	}
	key := inv.Args[0]
	value, err := c.store.Get(ctx, ChatName, key)
	if errors.Is(err, store.ErrNotFound) {
		return inv.Reply(ctx, fmt.Sprintf("nothing stored under %q", key))
	}
	if err != nil {
		return fmt.Errorf("reading note %q: %w", key, err)
	}
	return inv.Reply(ctx, value)
}
