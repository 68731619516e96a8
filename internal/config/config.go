// ABOUTME: Configuration loading and parsing for the arcbot runtime
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete arcbot configuration.
type Config struct {
	Bot      BotConfig                 `yaml:"bot"`
	Gateway  GatewayConfig             `yaml:"gateway"`
	Workers  WorkersConfig             `yaml:"workers"`
	Database DatabaseConfig            `yaml:"database"`
	Webhook  WebhookConfig             `yaml:"webhook"`
	Console  ConsoleConfig             `yaml:"console"`
	Metrics  MetricsConfig             `yaml:"metrics"`
	Plugins  PluginsConfig             `yaml:"plugins"`
	Logging  LoggingConfig             `yaml:"logging"`
	Plugin   map[string]map[string]any `yaml:"plugin"` // per-plugin opaque config, keyed by plugin name
}

// BotConfig holds the bot's identity and command trigger.
type BotConfig struct {
	Name    string `yaml:"name"`
	Token   string `yaml:"token"`
	Trigger string `yaml:"trigger"`
	Status  string `yaml:"status"` // presence text, optional
}

// GatewayConfig holds shard assignment and reconnect tuning.
type GatewayConfig struct {
	ShardID    int `yaml:"shard_id"`
	ShardTotal int `yaml:"shard_total"`

	MaxReconnects int `yaml:"max_reconnects"`

	BackoffBase time.Duration `yaml:"-"`
	BackoffCap  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	BackoffBaseRaw string `yaml:"backoff_base"`
	BackoffCapRaw  string `yaml:"backoff_cap"`
}

// WorkersConfig holds worker pool sizing.
type WorkersConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig holds the optional webhook listener configuration.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Secret  string `yaml:"secret"`
}

// ConsoleConfig holds the optional remote debug console configuration.
// The console is a security-sensitive surface and defaults to loopback.
type ConsoleConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	PasswordHash string `yaml:"password_hash"` // bcrypt hash
}

// MetricsConfig holds the optional Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PluginsConfig holds plugin discovery configuration.
type PluginsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Defaults applied by Load before validation.
const (
	DefaultTrigger     = "."
	DefaultWorkerCount = 8
	DefaultQueueSize   = 256
	DefaultConsoleAddr = "127.0.0.1:9923"
	DefaultWebhookAddr = ":8470"
	DefaultMetricsAddr = "127.0.0.1:9106"

	defaultBackoffBase   = time.Second
	defaultBackoffCap    = 2 * time.Minute
	defaultMaxReconnects = 10
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration bytes. Split out from Load so tests
// can build configs without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Bot.Trigger == "" {
		c.Bot.Trigger = DefaultTrigger
	}
	if c.Gateway.ShardTotal == 0 {
		c.Gateway.ShardTotal = 1
	}
	if c.Gateway.MaxReconnects == 0 {
		c.Gateway.MaxReconnects = defaultMaxReconnects
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = DefaultWorkerCount
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = DefaultQueueSize
	}
	if c.Console.Addr == "" {
		c.Console.Addr = DefaultConsoleAddr
	}
	if c.Webhook.Addr == "" {
		c.Webhook.Addr = DefaultWebhookAddr
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// Shard bounds are checked here so a misconfigured process fails before it
// ever dials the gateway.
func (c *Config) Validate() error {
	if c.Bot.Name == "" {
		return fmt.Errorf("bot.name is required")
	}
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token is required")
	}

	if c.Gateway.ShardTotal < 1 {
		return fmt.Errorf("gateway.shard_total must be >= 1, got %d", c.Gateway.ShardTotal)
	}
	if c.Gateway.ShardID < 0 || c.Gateway.ShardID >= c.Gateway.ShardTotal {
		return fmt.Errorf("gateway.shard_id must satisfy 0 <= shard_id < shard_total, got %d/%d",
			c.Gateway.ShardID, c.Gateway.ShardTotal)
	}

	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be >= 1, got %d", c.Workers.Count)
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("workers.queue_size must be >= 1, got %d", c.Workers.QueueSize)
	}

	if c.Webhook.Enabled && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required when webhook is enabled")
	}
	if c.Console.Enabled && c.Console.PasswordHash == "" {
		return fmt.Errorf("console.password_hash is required when console is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	cfg.Gateway.BackoffBase = defaultBackoffBase
	cfg.Gateway.BackoffCap = defaultBackoffCap

	var err error

	if cfg.Gateway.BackoffBaseRaw != "" {
		cfg.Gateway.BackoffBase, err = time.ParseDuration(cfg.Gateway.BackoffBaseRaw)
		if err != nil {
			return fmt.Errorf("parsing backoff_base %q: %w", cfg.Gateway.BackoffBaseRaw, err)
		}
	}

	if cfg.Gateway.BackoffCapRaw != "" {
		cfg.Gateway.BackoffCap, err = time.ParseDuration(cfg.Gateway.BackoffCapRaw)
		if err != nil {
			return fmt.Errorf("parsing backoff_cap %q: %w", cfg.Gateway.BackoffCapRaw, err)
		}
	}

	return nil
}

// PluginConfig returns the opaque configuration mapping for the named plugin,
// or nil if none was provided. The core never inspects the contents.
func (c *Config) PluginConfig(name string) map[string]any {
	if c.Plugin == nil {
		return nil
	}
	return c.Plugin[name]
}
