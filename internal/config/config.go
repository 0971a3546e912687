// Package config loads process settings from WORKLOG_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sadopc/worklog/internal/store"
)

const Prefix = "WORKLOG"

type Config struct {
	DataDir         string        `envconfig:"DATA_DIR"`
	Addr            string        `envconfig:"ADDR" default:":8080"`
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL" default:"1m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	DefaultUser     string        `envconfig:"DEFAULT_USER" default:"default"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `envconfig:"OTLP_INSECURE" default:"false"`
}

// Load reads the environment and fills in the data directory default.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		dir, err := store.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q: want text or json", c.LogFormat)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval must not be negative")
	}
	if c.DefaultUser == "" {
		return fmt.Errorf("default user must not be empty")
	}
	return nil
}

// UsersDir holds one database per user.
func (c *Config) UsersDir() string {
	return filepath.Join(c.DataDir, "users")
}

// LogPath is where the terminal UI logs, so output does not corrupt the screen.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "worklog.log")
}

// Logger builds the slog logger described by the config, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// FileLogger opens LogPath for appending and returns a logger over it.
func (c *Config) FileLogger() (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(c.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return c.Logger(f), f, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
