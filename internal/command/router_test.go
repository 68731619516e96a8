// ABOUTME: Tests for the command router
// ABOUTME: Covers trigger matching, tie-breaks, unknown commands, and handler isolation

package command

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbot/arcbot/internal/plugin"
)

// testPlugin is a minimal plugin.Plugin with fixed handlers.
type testPlugin struct {
	handlers map[string]plugin.Handler
	initErr  error
}

func (p *testPlugin) Init(context.Context, *plugin.Env) error { return p.initErr }

func (p *testPlugin) Handlers() map[string]plugin.Handler { return p.handlers }

func (p *testPlugin) Shutdown(context.Context) error { return nil }

// mockReplier records messages sent back to channels.
type mockReplier struct {
	said []string
}

func (m *mockReplier) Say(_ context.Context, channelID, message string) error {
	m.said = append(m.said, channelID+": "+message)
	return nil
}

func (m *mockReplier) Whisper(_ context.Context, userID, message string) error {
	m.said = append(m.said, "dm:"+userID+": "+message)
	return nil
}

// pluginSpec describes one plugin to register in a test registry.
type pluginSpec struct {
	name     string
	deps     []string
	commands []string
	p        *testPlugin
}

// buildRegistry registers and loads the given plugins in order.
func buildRegistry(t *testing.T, specs ...pluginSpec) *plugin.Registry {
	t.Helper()

	r := plugin.NewRegistry(slog.Default())
	for _, s := range specs {
		d := &plugin.Descriptor{Name: s.name, Entry: s.name, Dependencies: s.deps}
		for _, c := range s.commands {
			d.Commands = append(d.Commands, plugin.CommandSpec{Name: c})
		}
		p := s.p
		require.NoError(t, r.RegisterBuiltin(d, func() plugin.Plugin { return p }))
	}
	_, err := r.Load(context.Background(), func(string) *plugin.Env { return &plugin.Env{} })
	require.NoError(t, err)
	return r
}

func noopHandler(called *int) plugin.Handler {
	return func(context.Context, *plugin.Invocation) error {
		*called++
		return nil
	}
}

func TestDispatch_TriggerScenarios(t *testing.T) {
	var pings int
	reg := buildRegistry(t, pluginSpec{
		name:     "a",
		commands: []string{"ping"},
		p:        &testPlugin{handlers: map[string]plugin.Handler{"ping": noopHandler(&pings)}},
	})
	router := NewRouter(".", reg, nil, slog.Default())

	t.Run("trigger plus registered command routes", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: ".ping"})
		require.NoError(t, err)
		assert.Equal(t, ResultHandled, result)
		assert.Equal(t, 1, pings)
	})

	t.Run("no trigger means no dispatch", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: "ping"})
		require.NoError(t, err)
		assert.Equal(t, ResultIgnored, result)
		assert.Equal(t, 1, pings, "handler must not run")
	})

	t.Run("unregistered command reports unknown", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: ".pong"})
		assert.Equal(t, ResultUnknown, result)

		var unknown *UnknownCommandError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "pong", unknown.Command)
		assert.Equal(t, 1, pings, "no handler may be invoked")
	})

	t.Run("bare trigger is ignored", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: ". "})
		require.NoError(t, err)
		assert.Equal(t, ResultIgnored, result)
	})
}

func TestDispatch_ArgsAndText(t *testing.T) {
	var got *plugin.Invocation
	reg := buildRegistry(t, pluginSpec{
		name:     "a",
		commands: []string{"echo"},
		p: &testPlugin{handlers: map[string]plugin.Handler{
			"echo": func(_ context.Context, inv *plugin.Invocation) error {
				got = inv
				return nil
			},
		}},
	})
	router := NewRouter("!", reg, nil, slog.Default())

	_, err := router.Dispatch(context.Background(), Message{
		Text:      "!echo hello   world",
		ChannelID: "chan-1",
		AuthorID:  "user-9",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "echo", got.Command)
	assert.Equal(t, []string{"hello", "world"}, got.Args)
	assert.Equal(t, "chan-1", got.ChannelID)
	assert.Equal(t, "user-9", got.AuthorID)
}

func TestDispatch_TieBreakByLoadOrder(t *testing.T) {
	var first, second int
	reg := buildRegistry(t,
		pluginSpec{
			name:     "first",
			commands: []string{"status"},
			p:        &testPlugin{handlers: map[string]plugin.Handler{"status": noopHandler(&first)}},
		},
		pluginSpec{
			name:     "second",
			commands: []string{"status"},
			p:        &testPlugin{handlers: map[string]plugin.Handler{"status": noopHandler(&second)}},
		},
	)
	router := NewRouter(".", reg, nil, slog.Default())

	result, err := router.Dispatch(context.Background(), Message{Text: ".status"})
	require.NoError(t, err)
	assert.Equal(t, ResultHandled, result)
	assert.Equal(t, 1, first, "earlier-loaded plugin wins the tie")
	assert.Equal(t, 0, second)
}

func TestDispatch_HandlerErrorIsContained(t *testing.T) {
	boom := errors.New("boom")
	reg := buildRegistry(t, pluginSpec{
		name:     "a",
		commands: []string{"bad", "panic"},
		p: &testPlugin{handlers: map[string]plugin.Handler{
			"bad": func(context.Context, *plugin.Invocation) error { return boom },
			"panic": func(context.Context, *plugin.Invocation) error {
				panic("handler exploded")
			},
		}},
	})
	router := NewRouter(".", reg, nil, slog.Default())

	t.Run("error carries plugin and command context", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: ".bad"})
		assert.Equal(t, ResultFailed, result)

		var herr *HandlerError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, "a", herr.Plugin)
		assert.Equal(t, "bad", herr.Command)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic is caught at the dispatch boundary", func(t *testing.T) {
		result, err := router.Dispatch(context.Background(), Message{Text: ".panic"})
		assert.Equal(t, ResultFailed, result)

		var herr *HandlerError
		require.ErrorAs(t, err, &herr)
		assert.Contains(t, herr.Err.Error(), "panic")
	})
}

func TestDispatch_SkippedPluginAbsentFromTable(t *testing.T) {
	// b depends on a, a fails init: b's commands must not be routable.
	var handled int
	reg := buildRegistry(t,
		pluginSpec{
			name: "a",
			p:    &testPlugin{initErr: errors.New("init failed")},
		},
		pluginSpec{
			name:     "b",
			deps:     []string{"a"},
			commands: []string{"greet"},
			p:        &testPlugin{handlers: map[string]plugin.Handler{"greet": noopHandler(&handled)}},
		},
	)
	router := NewRouter(".", reg, nil, slog.Default())

	result, err := router.Dispatch(context.Background(), Message{Text: ".greet"})
	assert.Equal(t, ResultUnknown, result)

	var unknown *UnknownCommandError
	require.ErrorAs(t, err, &unknown)
	assert.Zero(t, handled)
	assert.Empty(t, router.Commands())
}

func TestDispatch_ReplyWiring(t *testing.T) {
	reg := buildRegistry(t, pluginSpec{
		name:     "a",
		commands: []string{"hi"},
		p: &testPlugin{handlers: map[string]plugin.Handler{
			"hi": func(ctx context.Context, inv *plugin.Invocation) error {
				return inv.Reply(ctx, "hello back")
			},
		}},
	})
	replier := &mockReplier{}
	router := NewRouter(".", reg, replier, slog.Default())

	_, err := router.Dispatch(context.Background(), Message{Text: ".hi", ChannelID: "c1"})
	require.NoError(t, err)
	require.Len(t, replier.said, 1)
	assert.Equal(t, "c1: hello back", replier.said[0])
}

func TestDispatch_UnknownCommandEchoed(t *testing.T) {
	reg := buildRegistry(t, pluginSpec{
		name: "a",
		p:    &testPlugin{},
	})
	replier := &mockReplier{}
	router := NewRouter(".", reg, replier, slog.Default())

	_, _ = router.Dispatch(context.Background(), Message{Text: ".nope", ChannelID: "c1"})
	require.Len(t, replier.said, 1)
	assert.Contains(t, replier.said[0], "unknown command: nope")
}
