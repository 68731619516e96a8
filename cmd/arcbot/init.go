// ABOUTME: Interactive config file generation for the init subcommand
// ABOUTME: Writes YAML matching the config package's schema

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arcbot/arcbot/internal/console"
)

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}
	answer, err := reader.ReadString('\n')
	if err != nil {
		return defaultValue
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue
	}
	return answer
}

func promptYes(reader *bufio.Reader, question, defaultValue string) bool {
	answer := strings.ToLower(prompt(reader, question, defaultValue))
	return answer == "yes" || answer == "y"
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("arcbot configuration setup")
	fmt.Println("==========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "arcbot.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !promptYes(reader, "File exists. Overwrite?", "no") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Bot Configuration ---")
	botName := prompt(reader, "Bot name", "arcbot")
	token := prompt(reader, "Platform bot token (or ${ARCBOT_TOKEN})", "${ARCBOT_TOKEN}")
	trigger := prompt(reader, "Command trigger", ".")
	status := prompt(reader, "Presence text (empty for none)", "")

	fmt.Println("\n--- Gateway Configuration ---")
	shardID := prompt(reader, "Shard ID", "0")
	shardTotal := prompt(reader, "Shard total", "1")

	fmt.Println("\n--- Worker Configuration ---")
	workers := prompt(reader, "Worker count", "8")
	queueSize := prompt(reader, "Queue size", "256")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Webhook Configuration ---")
	webhookEnabled := promptYes(reader, "Enable webhook listener?", "no")
	var webhookAddr, webhookSecret string
	if webhookEnabled {
		webhookAddr = prompt(reader, "Webhook address", ":8470")
		generated, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generating webhook secret: %w", err)
		}
		webhookSecret = prompt(reader, "Webhook secret", generated)
	}

	fmt.Println("\n--- Console Configuration ---")
	consoleEnabled := promptYes(reader, "Enable operator console?", "no")
	var consoleAddr, consoleHash string
	if consoleEnabled {
		consoleAddr = prompt(reader, "Console address", "127.0.0.1:9923")
		password := prompt(reader, "Console password", "")
		if password == "" {
			return fmt.Errorf("console password required when console is enabled")
		}
		hash, err := console.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing console password: %w", err)
		}
		consoleHash = hash
	}

	fmt.Println("\n--- Metrics Configuration ---")
	metricsEnabled := promptYes(reader, "Enable Prometheus metrics?", "no")
	var metricsAddr string
	if metricsEnabled {
		metricsAddr = prompt(reader, "Metrics address", "127.0.0.1:9106")
	}

	fmt.Println("\n--- Plugin Configuration ---")
	pluginsDir := prompt(reader, "Plugin manifest directory (empty for builtins only)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# arcbot configuration\n")
	cfg.WriteString("# Generated by arcbot init\n\n")

	cfg.WriteString("bot:\n")
	cfg.WriteString(fmt.Sprintf("  name: %q\n", botName))
	cfg.WriteString(fmt.Sprintf("  token: %q\n", token))
	cfg.WriteString(fmt.Sprintf("  trigger: %q\n", trigger))
	if status != "" {
		cfg.WriteString(fmt.Sprintf("  status: %q\n", status))
	}
	cfg.WriteString("\n")

	cfg.WriteString("gateway:\n")
	cfg.WriteString(fmt.Sprintf("  shard_id: %s\n", shardID))
	cfg.WriteString(fmt.Sprintf("  shard_total: %s\n", shardTotal))
	cfg.WriteString("\n")

	cfg.WriteString("workers:\n")
	cfg.WriteString(fmt.Sprintf("  count: %s\n", workers))
	cfg.WriteString(fmt.Sprintf("  queue_size: %s\n", queueSize))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("webhook:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", webhookEnabled))
	if webhookEnabled {
		cfg.WriteString(fmt.Sprintf("  addr: %q\n", webhookAddr))
		cfg.WriteString(fmt.Sprintf("  secret: %q\n", webhookSecret))
	}
	cfg.WriteString("\n")

	cfg.WriteString("console:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", consoleEnabled))
	if consoleEnabled {
		cfg.WriteString(fmt.Sprintf("  addr: %q\n", consoleAddr))
		cfg.WriteString(fmt.Sprintf("  password_hash: %q\n", consoleHash))
	}
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", metricsEnabled))
	if metricsEnabled {
		cfg.WriteString(fmt.Sprintf("  addr: %q\n", metricsAddr))
	}
	cfg.WriteString("\n")

	if pluginsDir != "" {
		cfg.WriteString("plugins:\n")
		cfg.WriteString(fmt.Sprintf("  dir: %q\n", pluginsDir))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("\nWrote %s\n", outputFile)
	fmt.Println("Set ARCBOT_TOKEN in the environment before running 'arcbot serve'.")
	return nil
}
