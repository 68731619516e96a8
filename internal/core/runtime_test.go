// ABOUTME: Tests for runtime wiring: event handling, synthetic ingest, views
// ABOUTME: Uses a real sqlite store in a temp dir and a capture replier

package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbot/arcbot/internal/command"
	"github.com/arcbot/arcbot/internal/config"
	"github.com/arcbot/arcbot/internal/gateway"
	"github.com/arcbot/arcbot/internal/plugin"
	"github.com/arcbot/arcbot/internal/worker"
)

func testRuntimeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Bot.Name = "arcbot"
	cfg.Bot.Token = "test-token"
	cfg.Bot.Trigger = "."
	cfg.Gateway.ShardTotal = 1
	cfg.Workers.Count = 2
	cfg.Workers.QueueSize = 8
	cfg.Database.Path = filepath.Join(t.TempDir(), "bot.db")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newLoadedRuntime builds a runtime with builtins loaded and a capture
// replier wired into the router.
func newLoadedRuntime(t *testing.T) (*Runtime, *captureReplier) {
	t.Helper()

	r, err := New(testRuntimeConfig(t), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { r.st.Close() })

	_, err = r.registry.Load(context.Background(), r.envFor)
	require.NoError(t, err)

	capture := &captureReplier{}
	r.router = command.NewRouter(r.cfg.Bot.Trigger, r.registry, capture, r.logger)
	return r, capture
}

func messageEvent(t *testing.T, content, author string, isBot bool) *gateway.Event {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"channel_id": "chan-1",
		"content":    content,
		"author":     map[string]any{"id": author, "bot": isBot},
	})
	require.NoError(t, err)
	return &gateway.Event{Shard: 0, Type: gateway.EventMessageCreate, Data: data}
}

func TestHandleEventDispatchesCommand(t *testing.T) {
	r, capture := newLoadedRuntime(t)

	err := r.handleEvent(context.Background(), messageEvent(t, ".ping", "user-1", false))
	require.NoError(t, err)
	assert.Equal(t, "pong", capture.String())
}

func TestHandleEventIgnoresBotAuthors(t *testing.T) {
	r, capture := newLoadedRuntime(t)

	err := r.handleEvent(context.Background(), messageEvent(t, ".ping", "other-bot", true))
	require.NoError(t, err)
	assert.Empty(t, capture.String())
}

func TestHandleEventIgnoresPlainChat(t *testing.T) {
	r, capture := newLoadedRuntime(t)

	err := r.handleEvent(context.Background(), messageEvent(t, "just talking", "user-1", false))
	require.NoError(t, err)
	assert.Empty(t, capture.String())
}

func TestHandleEventRecordsEventCounts(t *testing.T) {
	r, _ := newLoadedRuntime(t)

	ev := &gateway.Event{Shard: 0, Type: "PRESENCE_UPDATE", Data: json.RawMessage(`{}`)}
	require.NoError(t, r.handleEvent(context.Background(), ev))
	require.NoError(t, r.handleEvent(context.Background(), ev))

	counts, err := r.st.EventCounts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "PRESENCE_UPDATE", counts[0].EventType)
	assert.Equal(t, int64(2), counts[0].Count)
}

func TestIngestSynthetic(t *testing.T) {
	r, capture := newLoadedRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.pool = worker.NewPool(1, 4, r.logger)
	r.pool.Start(ctx)

	data, _ := json.Marshal(map[string]any{
		"channel_id": "chan-1",
		"content":    ".echo from webhook",
		"author":     map[string]any{"id": "hook", "bot": false},
	})
	require.NoError(t, r.ingestSynthetic(ctx, gateway.EventMessageCreate, data))

	require.Eventually(t, func() bool { return capture.String() == "from webhook" },
		2*time.Second, 10*time.Millisecond)
	r.pool.Stop()
}

func TestRuntimeInfoViews(t *testing.T) {
	r, _ := newLoadedRuntime(t)
	info := (*runtimeInfo)(r)

	cmds := info.CommandHelp()
	names := make(map[string]string)
	for _, c := range cmds {
		names[c.Name] = c.Plugin
	}
	assert.Equal(t, "chat", names["ping"])
	assert.Equal(t, "core", names["help"])

	pl := info.PluginInfo()
	require.Len(t, pl, 2)
	for _, p := range pl {
		assert.Equal(t, "active", p.State)
	}
}

func TestConsoleBackend(t *testing.T) {
	r, _ := newLoadedRuntime(t)
	backend := (*consoleBackend)(r)

	st := backend.Status()
	assert.Equal(t, "arcbot", st.Name)
	assert.Equal(t, 2, st.Workers)
	assert.Empty(t, st.Shards) // no gateway manager outside Run

	out, err := backend.Dispatch(context.Background(), ".ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	out, err = backend.Dispatch(context.Background(), "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "not a command")

	pl := backend.Plugins()
	require.Len(t, pl, 2)

	// Presence needs a live gateway manager.
	assert.ErrorIs(t, backend.SetPresence(context.Background(), "x"), gateway.ErrNotConnected)
}

func TestEnvForCarriesPluginConfig(t *testing.T) {
	cfg := testRuntimeConfig(t)
	cfg.Plugin = map[string]map[string]any{
		"chat": {"greeting": "yo"},
	}
	r, err := New(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { r.st.Close() })

	env := r.envFor("chat")
	require.NotNil(t, env.Bot)
	assert.Equal(t, "yo", env.Config["greeting"])
	assert.Nil(t, r.envFor("unknown").Config)
}

func TestRegisterManifests(t *testing.T) {
	cfg := testRuntimeConfig(t)
	cfg.Plugins.Dir = filepath.Join(t.TempDir(), "missing")

	// A missing manifest directory is not an error; only builtins load.
	r, err := New(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { r.st.Close() })
	assert.Len(t, r.registry.All(), 2)
}

func TestRegisterFactory(t *testing.T) {
	r, _ := newLoadedRuntime(t)
	err := r.RegisterFactory("custom", func() plugin.Plugin { return nil })
	assert.NoError(t, err)
}
