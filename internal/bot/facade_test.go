// ABOUTME: Tests for the bot facade
// ABOUTME: Verifies read-only accessors and plugin config passthrough

package bot

import (
	"testing"

	"github.com/arcbot/arcbot/internal/store"
)

func TestFacadeAccessors(t *testing.T) {
	pluginConf := map[string]map[string]any{
		"chat": {"greeting": "hi"},
	}
	st := store.NewMockStore()

	f := New("arcbot", ".", ShardConfig{ID: 2, Total: 8}, pluginConf, st, nil)

	if f.Name() != "arcbot" {
		t.Errorf("expected name 'arcbot', got %q", f.Name())
	}
	if f.Trigger() != "." {
		t.Errorf("expected trigger '.', got %q", f.Trigger())
	}
	if shard := f.Shard(); shard.ID != 2 || shard.Total != 8 {
		t.Errorf("expected shard 2/8, got %d/%d", shard.ID, shard.Total)
	}
	if f.Store() != store.Store(st) {
		t.Error("expected store handle passthrough")
	}
	if f.Uptime() < 0 {
		t.Error("expected non-negative uptime")
	}
}

func TestFacadePluginConfig(t *testing.T) {
	f := New("arcbot", ".", ShardConfig{Total: 1}, map[string]map[string]any{
		"chat": {"greeting": "hi"},
	}, nil, nil)

	cfg := f.PluginConfig("chat")
	if cfg == nil || cfg["greeting"] != "hi" {
		t.Errorf("expected chat config passthrough, got %v", cfg)
	}
	if f.PluginConfig("absent") != nil {
		t.Error("expected nil for unknown plugin")
	}

	// Nil mapping is fine too
	empty := New("arcbot", ".", ShardConfig{Total: 1}, nil, nil, nil)
	if empty.PluginConfig("chat") != nil {
		t.Error("expected nil from nil mapping")
	}
}
