// Package config materializes the server's ambient configuration. The server
// binary takes no arguments: settings come from built-in defaults, an
// optional YAML file, and LINECHAT_* environment overrides, in that order.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the original deployment constants.
const (
	DefaultPort      = 9090
	DefaultAddress   = ":9090"
	DefaultCapacity  = 128
	DefaultNameLimit = 32
	DefaultLineLimit = 4096
	DefaultEventLog  = "server.log"
)

// Config holds every server setting.
type Config struct {
	// Address is the TCP listen address, port included.
	Address string `yaml:"address"`
	// Capacity is the maximum number of simultaneously connected clients.
	Capacity int `yaml:"capacity"`
	// NameLimit bounds display names, in bytes.
	NameLimit int `yaml:"name_limit"`
	// LineLimit bounds one line of client input, in bytes.
	LineLimit int `yaml:"line_limit"`
	// EventLog is the path of the append-only event log file.
	EventLog string `yaml:"event_log"`

	Logging Logging `yaml:"logging"`
}

// Logging selects the operational log's verbosity and output shape.
type Logging struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration the server runs with when nothing
// overrides it.
func Default() *Config {
	return &Config{
		Address:   DefaultAddress,
		Capacity:  DefaultCapacity,
		NameLimit: DefaultNameLimit,
		LineLimit: DefaultLineLimit,
		EventLog:  DefaultEventLog,
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path when one is given, then environment overrides, validated last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: load %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LINECHAT_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("LINECHAT_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("LINECHAT_NAME_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NameLimit = n
		}
	}
	if v := os.Getenv("LINECHAT_LINE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LineLimit = n
		}
	}
	if v := os.Getenv("LINECHAT_EVENT_LOG"); v != "" {
		cfg.EventLog = v
	}
	if v := os.Getenv("LINECHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LINECHAT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", c.Capacity)
	}
	if c.NameLimit < 1 {
		return fmt.Errorf("name limit must be at least 1, got %d", c.NameLimit)
	}
	if c.LineLimit < 1 {
		return fmt.Errorf("line limit must be at least 1, got %d", c.LineLimit)
	}
	if c.EventLog == "" {
		return fmt.Errorf("event log path cannot be empty")
	}
	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// NewLogger builds the operational logger this configuration describes.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(l.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// String renders the effective settings for startup logging, secrets-free by
// construction.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Address: %s, Capacity: %d, NameLimit: %d, EventLog: %s, LogLevel: %s}",
		c.Address, c.Capacity, c.NameLimit, c.EventLog, c.Logging.Level)
}
