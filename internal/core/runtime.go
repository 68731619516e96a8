// ABOUTME: Runtime wiring: builds every component from config and runs them
// ABOUTME: Owns startup order and the reverse shutdown sequence

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arcbot/arcbot/internal/bot"
	"github.com/arcbot/arcbot/internal/chatapi"
	"github.com/arcbot/arcbot/internal/command"
	"github.com/arcbot/arcbot/internal/config"
	"github.com/arcbot/arcbot/internal/console"
	"github.com/arcbot/arcbot/internal/gateway"
	"github.com/arcbot/arcbot/internal/metrics"
	"github.com/arcbot/arcbot/internal/plugin"
	"github.com/arcbot/arcbot/internal/plugins"
	"github.com/arcbot/arcbot/internal/store"
	"github.com/arcbot/arcbot/internal/webhook"
	"github.com/arcbot/arcbot/internal/worker"
)

// shutdownTimeout bounds plugin unload and store close at exit.
const shutdownTimeout = 15 * time.Second

// Runtime assembles the bot from config and supervises its components.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	st       store.Store
	api      *chatapi.Client
	facade   *bot.Facade
	registry *plugin.Registry
	router   *command.Router
	pool     *worker.Pool
	manager  *gateway.Manager
}

// New builds the runtime's static components. The gateway URL is discovered
// at Run time because it requires a live API call.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	api := chatapi.New(cfg.Bot.Token)
	facade := bot.New(
		cfg.Bot.Name,
		cfg.Bot.Trigger,
		bot.ShardConfig{ID: cfg.Gateway.ShardID, Total: cfg.Gateway.ShardTotal},
		cfg.Plugin,
		st,
		api,
	)

	r := &Runtime{
		cfg:      cfg,
		logger:   logger,
		st:       st,
		api:      api,
		facade:   facade,
		registry: plugin.NewRegistry(logger),
	}

	if err := plugins.RegisterBuiltins(r.registry, (*runtimeInfo)(r)); err != nil {
		st.Close()
		return nil, err
	}
	if err := r.registerManifests(); err != nil {
		st.Close()
		return nil, err
	}
	return r, nil
}

// registerManifests discovers plugin manifests from the configured
// directory. A missing directory means only builtins load.
func (r *Runtime) registerManifests() error {
	if r.cfg.Plugins.Dir == "" {
		return nil
	}
	descriptors, err := plugin.DiscoverManifests(r.cfg.Plugins.Dir)
	if err != nil {
		return fmt.Errorf("discovering plugin manifests: %w", err)
	}
	for _, d := range descriptors {
		if err := r.registry.Register(d); err != nil {
			return fmt.Errorf("registering plugin %s: %w", d.Name, err)
		}
	}
	return nil
}

// RegisterFactory exposes factory registration for plugins compiled into
// custom builds of the binary.
func (r *Runtime) RegisterFactory(entry string, f plugin.Factory) error {
	return r.registry.RegisterFactory(entry, f)
}

// Run starts everything and blocks until ctx is cancelled or a component
// fails fatally. Shutdown runs in reverse: gateway first, then the pool
// drains, then plugins unload, then the store closes.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.st.Close()

	loaded, err := r.registry.Load(ctx, r.envFor)
	if err != nil {
		return fmt.Errorf("loading plugins: %w", err)
	}
	for _, in := range loaded {
		r.logger.Info("plugin loaded",
			"plugin", in.Descriptor.Name,
			"version", in.Descriptor.Version,
			"state", in.State.String(),
		)
	}

	r.router = command.NewRouter(r.cfg.Bot.Trigger, r.registry, r.api, r.logger)

	r.pool = worker.NewPool(r.cfg.Workers.Count, r.cfg.Workers.QueueSize, r.logger)
	r.pool.Start(ctx)

	info, err := r.api.GetGatewayBot(ctx)
	if err != nil {
		r.pool.Stop()
		r.unloadPlugins()
		return fmt.Errorf("discovering gateway: %w", err)
	}
	if r.cfg.Gateway.ShardTotal < info.Shards {
		r.logger.Warn("configured shard total below platform recommendation",
			"configured", r.cfg.Gateway.ShardTotal, "recommended", info.Shards)
	}

	r.manager = gateway.NewManager(gateway.Config{
		URL:           info.URL,
		Token:         r.cfg.Bot.Token,
		Identity:      r.cfg.Bot.Name,
		Status:        r.cfg.Bot.Status,
		ShardID:       r.cfg.Gateway.ShardID,
		ShardTotal:    r.cfg.Gateway.ShardTotal,
		BackoffBase:   r.cfg.Gateway.BackoffBase,
		BackoffCap:    r.cfg.Gateway.BackoffCap,
		MaxReconnects: r.cfg.Gateway.MaxReconnects,
	}, gateway.WebsocketDialer{}, r.pool, r.handleEvent, r.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.manager.Run(gctx) })

	if r.cfg.Webhook.Enabled {
		wh := webhook.New(r.cfg.Webhook.Addr, r.cfg.Webhook.Secret, r.ingestSynthetic, r.logger)
		g.Go(func() error { return wh.Run(gctx) })
	}
	if r.cfg.Console.Enabled {
		cons := console.New(r.cfg.Console.Addr, r.cfg.Console.PasswordHash, (*consoleBackend)(r), r.logger)
		g.Go(func() error { return cons.Run(gctx) })
	}
	if r.cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, r.cfg.Metrics.Addr, r.logger) })
	}

	r.logger.Info("bot running",
		"name", r.cfg.Bot.Name,
		"shard", r.cfg.Gateway.ShardID,
		"shard_total", r.cfg.Gateway.ShardTotal,
		"workers", r.cfg.Workers.Count,
	)

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	r.pool.Stop()
	r.unloadPlugins()

	if runErr != nil {
		return runErr
	}
	return nil
}

func (r *Runtime) unloadPlugins() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	r.registry.Unload(ctx)
}

// envFor builds the init environment for one plugin.
func (r *Runtime) envFor(name string) *plugin.Env {
	return &plugin.Env{
		Bot:    r.facade,
		Config: r.facade.PluginConfig(name),
		Log:    r.logger.With("plugin", name),
	}
}

// handleEvent processes one gateway event on a pool worker.
func (r *Runtime) handleEvent(ctx context.Context, ev *gateway.Event) error {
	if err := r.st.RecordEvent(ctx, ev.Shard, ev.Type); err != nil {
		r.logger.Warn("recording event", "type", ev.Type, "error", err)
	}

	if ev.Type != gateway.EventMessageCreate {
		r.logger.Debug("ignoring event", "type", ev.Type)
		return nil
	}

	var msg gateway.MessageData
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		return fmt.Errorf("decoding message event: %w", err)
	}
	if msg.Author.Bot {
		return nil
	}

	_, err := r.router.Dispatch(ctx, command.Message{
		Text:      msg.Content,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
	})
	return err
}

// ingestSynthetic wraps a webhook call as a work item with the synthetic
// origin marker, entering the same queue as gateway events.
func (r *Runtime) ingestSynthetic(ctx context.Context, eventType string, data json.RawMessage) error {
	ev := &gateway.Event{
		Shard: worker.OriginSynthetic,
		Type:  eventType,
		Data:  data,
	}
	item := worker.NewItem(worker.OriginSynthetic, eventType, func(ctx context.Context) error {
		return r.handleEvent(ctx, ev)
	})
	return r.pool.Submit(ctx, item)
}
