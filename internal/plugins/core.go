// ABOUTME: Builtin core plugin: help, plugin listing, and runtime status
// ABOUTME: Depends on the chat plugin so help always covers the basics

package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arcbot/arcbot/internal/plugin"
)

// CoreName is the core plugin's registered name.
const CoreName = "core"

// CommandHelp is one routable command for the help listing.
type CommandHelp struct {
	Plugin string
	Name   string
	Help   string
}

// PluginInfo is one plugin's state for the plugins listing.
type PluginInfo struct {
	Name    string
	Version string
	State   string
}

// InfoSource supplies the runtime views the core plugin prints. The wiring
// layer implements it over the registry and router.
type InfoSource interface {
	CommandHelp() []CommandHelp
	PluginInfo() []PluginInfo
}

// CoreDescriptor is the manifest equivalent for the builtin core plugin.
// It depends on chat so the help output is never empty.
func CoreDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:         CoreName,
		Version:      "1.0.0",
		Entry:        CoreName,
		Dependencies: []string{ChatName},
		Commands: []plugin.CommandSpec{
			{Name: "help", Help: "list available commands"},
			{Name: "plugins", Help: "list loaded plugins and their state"},
			{Name: "status", Help: "show bot runtime status"},
		},
	}
}

// Core is the builtin core plugin.
type Core struct {
	info    InfoSource
	trigger string
	bot     botInfo
}

// NewCore builds the core plugin factory around a runtime info source.
func NewCore(info InfoSource) plugin.Factory {
	return func() plugin.Plugin {
		return &Core{info: info}
	}
}

func (c *Core) Init(ctx context.Context, env *plugin.Env) error {
	if env.Bot == nil {
		return fmt.Errorf("core plugin requires the bot facade")
	}
	c.bot = env.Bot
	c.trigger = env.Bot.Trigger()
	return nil
}

func (c *Core) Shutdown(ctx context.Context) error { return nil }

func (c *Core) Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"help":    c.help,
		"plugins": c.plugins,
		"status":  c.status,
	}
}

func (c *Core) help(ctx context.Context, inv *plugin.Invocation) error {
	cmds := c.info.CommandHelp()
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].Plugin != cmds[j].Plugin {
			return cmds[i].Plugin < cmds[j].Plugin
		}
		return cmds[i].Name < cmds[j].Name
	})

	var b strings.Builder
	b.WriteString("commands:\n")
	for _, cmd := range cmds {
		if cmd.Help != "" {
			fmt.Fprintf(&b, "%s%s: %s\n", c.trigger, cmd.Name, cmd.Help)
		} else {
			fmt.Fprintf(&b, "%s%s\n", c.trigger, cmd.Name)
		}
	}
	return inv.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (c *Core) plugins(ctx context.Context, inv *plugin.Invocation) error {
	var b strings.Builder
	for _, p := range c.info.PluginInfo() {
		fmt.Fprintf(&b, "%s %s [%s]\n", p.Name, p.Version, p.State)
	}
	if b.Len() == 0 {
		return inv.Reply(ctx, "no plugins loaded")
	}
	return inv.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (c *Core) status(ctx context.Context, inv *plugin.Invocation) error {
	return inv.Reply(ctx, fmt.Sprintf("%s: up %s, %d plugins loaded",
		c.bot.Name(), c.bot.Uptime().Round(time.Second), len(c.info.PluginInfo())))
}
