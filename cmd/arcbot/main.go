// ABOUTME: Entry point for the arcbot chat bot
// ABOUTME: Subcommands: serve, init, health, plugins, token, hashpass

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/arcbot/arcbot/internal/config"
	"github.com/arcbot/arcbot/internal/console"
	"github.com/arcbot/arcbot/internal/core"
	"github.com/arcbot/arcbot/internal/plugin"
	"github.com/arcbot/arcbot/internal/plugins"
	"github.com/arcbot/arcbot/internal/webhook"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 _           _
  __ _ _ __ ___ | |__   ___ | |_
 / _' | '__/ __|| '_ \ / _ \| __|
| (_| | | | (__ | |_) | (_) | |_
 \__,_|_|  \___||_.__/ \___/ \__|
`

// getConfigPath returns the path to the bot config file.
// Priority: ARCBOT_CONFIG env var > XDG_CONFIG_HOME/arcbot/arcbot.yaml > ~/.config/arcbot/arcbot.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ARCBOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "arcbot.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "arcbot", "arcbot.yaml")
}

// getDataPath returns the path to the arcbot data directory.
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "arcbot")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: arcbot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Connect to the platform and run the bot")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  health                   Check a running bot's health endpoint")
		fmt.Println("  plugins                  List builtin and discovered plugins")
		fmt.Println("  token <caller> [ttl]     Mint a webhook bearer token")
		fmt.Println("  hashpass <password>      Hash a console password for the config")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "plugins":
		err = runPlugins()
	case "token":
		err = runToken()
	case "hashpass":
		err = runHashpass()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Bot:     %s (shard %d/%d)\n", cfg.Bot.Name, cfg.Gateway.ShardID, cfg.Gateway.ShardTotal)
	green.Print("    ▶ ")
	fmt.Printf("Workers: %d (queue %d)\n", cfg.Workers.Count, cfg.Workers.QueueSize)
	if cfg.Webhook.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Webhook: %s\n", cfg.Webhook.Addr)
	}
	if cfg.Console.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Console: %s\n", cfg.Console.Addr)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics: %s\n", cfg.Metrics.Addr)
	}
	fmt.Println()

	logger.Info("starting arcbot",
		"config", configPath,
		"name", cfg.Bot.Name,
		"shard", cfg.Gateway.ShardID,
		"shard_total", cfg.Gateway.ShardTotal,
	)

	rt, err := core.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}

	return rt.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Webhook.Enabled {
		return fmt.Errorf("webhook surface disabled; no health endpoint to check")
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Webhook.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runPlugins() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	descriptors := []*plugin.Descriptor{
		plugins.ChatDescriptor(),
		plugins.CoreDescriptor(),
	}
	if cfg.Plugins.Dir != "" {
		discovered, err := plugin.DiscoverManifests(cfg.Plugins.Dir)
		if err != nil {
			return fmt.Errorf("discovering manifests: %w", err)
		}
		descriptors = append(descriptors, discovered...)
	}

	for _, d := range descriptors {
		fmt.Printf("%s %s", d.Name, d.Version)
		if len(d.Dependencies) > 0 {
			fmt.Printf(" (depends on %v)", d.Dependencies)
		}
		fmt.Println()
		for _, cmd := range d.Commands {
			if cmd.Help != "" {
				fmt.Printf("  %s%s: %s\n", cfg.Bot.Trigger, cmd.Name, cmd.Help)
			} else {
				fmt.Printf("  %s%s\n", cfg.Bot.Trigger, cmd.Name)
			}
		}
	}
	return nil
}

func runToken() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: arcbot token <caller> [ttl]")
	}
	caller := os.Args[2]

	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		parsed, err := time.ParseDuration(os.Args[3])
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", os.Args[3], err)
		}
		ttl = parsed
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	token, err := webhook.NewVerifier([]byte(cfg.Webhook.Secret)).Generate(caller, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runHashpass() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: arcbot hashpass <password>")
	}
	hash, err := console.HashPassword(os.Args[2])
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	fmt.Println(hash)
	return nil
}

// randomSecret returns a URL-safe random string for webhook secrets.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
