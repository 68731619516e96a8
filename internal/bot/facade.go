// ABOUTME: Read-only process-wide bot facade shared by plugins and the router
// ABOUTME: Carries identity, trigger, shard assignment, and collaborator handles

package bot

import (
	"context"
	"time"

	"github.com/arcbot/arcbot/internal/store"
)

// ShardConfig identifies this process's slice of the gateway connection space.
type ShardConfig struct {
	ID    int
	Total int
}

// Replier sends messages back to the chat platform. Implemented by the
// platform REST client; handlers only see this narrow surface.
type Replier interface {
	Say(ctx context.Context, channelID, message string) error
	Whisper(ctx context.Context, userID, message string) error
}

// Facade is the shared, process-wide bot handle. It is constructed once at
// startup and never mutated afterwards; any runtime "rename" a plugin wants
// must be a plugin-local override, not a change here.
type Facade struct {
	name    string
	trigger string
	shard   ShardConfig
	started time.Time

	pluginConf map[string]map[string]any
	store      store.Store
	replier    Replier
}

// New constructs the facade. Called exactly once during startup.
func New(name, trigger string, shard ShardConfig, pluginConf map[string]map[string]any, st store.Store, replier Replier) *Facade {
	return &Facade{
		name:       name,
		trigger:    trigger,
		shard:      shard,
		started:    time.Now(),
		pluginConf: pluginConf,
		store:      st,
		replier:    replier,
	}
}

// Name returns the bot's identity name.
func (f *Facade) Name() string { return f.name }

// Trigger returns the literal command trigger prefix.
func (f *Facade) Trigger() string { return f.trigger }

// Shard returns the shard assignment for this process.
func (f *Facade) Shard() ShardConfig { return f.shard }

// Uptime reports how long the facade (and so the process) has been up.
func (f *Facade) Uptime() time.Duration { return time.Since(f.started) }

// PluginConfig returns the opaque configuration for the named plugin, or nil.
// The mapping is passed through from the config file untouched.
func (f *Facade) PluginConfig(name string) map[string]any {
	if f.pluginConf == nil {
		return nil
	}
	return f.pluginConf[name]
}

// Store returns the persistence handle shared with plugins.
func (f *Facade) Store() store.Store { return f.store }

// Replier returns the outbound message collaborator. May be nil in tests.
func (f *Facade) Replier() Replier { return f.replier }
