package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GoCodeAlone/todospa/feeders"
	"github.com/GoCodeAlone/todospa/server"
	"github.com/GoCodeAlone/todospa/todoapi"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "TODOSPA"

// Config is the aggregate configuration of the client and the demo server.
//
// Example YAML configuration:
//
//	app:
//	  start_path: /card
//	api:
//	  base_url: http://localhost:8080
//	server:
//	  port: 8080
//	  db_path: ./todos.db
//	log:
//	  level: debug
type Config struct {
	App    Settings       `yaml:"app" toml:"app" json:"app" env:"APP"`
	API    todoapi.Config `yaml:"api" toml:"api" json:"api" env:"API"`
	Server server.Config  `yaml:"server" toml:"server" json:"server" env:"SERVER"`
	Log    LogConfig      `yaml:"log" toml:"log" json:"log" env:"LOG"`
}

// Settings configures the client loop.
type Settings struct {
	// StartPath is used when the location is empty at startup.
	// Default: /c
	StartPath string `yaml:"start_path" toml:"start_path" json:"start_path" env:"START_PATH"`

	// KeepStaleResponses applies list responses that arrive after the user
	// navigated away. By default they are dropped.
	KeepStaleResponses bool `yaml:"keep_stale_responses" toml:"keep_stale_responses" json:"keep_stale_responses" env:"KEEP_STALE_RESPONSES"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	// Level is a logrus level name.
	// Default: info
	Level string `yaml:"level" toml:"level" json:"level" env:"LEVEL"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format" toml:"format" json:"format" env:"FORMAT"`
}

// Validate checks the client and log sections and sets defaults. The api
// and server sections are validated by the components that use them.
func (c *Config) Validate() error {
	if c.App.StartPath == "" {
		c.App.StartPath = "/c"
	}
	if !strings.HasPrefix(c.App.StartPath, "/") {
		return fmt.Errorf("config validation error: %w: start_path %q", ErrInvalidConfig, c.App.StartPath)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config validation error: %w: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config validation error: %w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// LoadConfig reads path, if not empty, then TODOSPA_* environment
// variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	var sources []feeders.Feeder
	if path != "" {
		f, err := feeders.ForFile(path)
		if err != nil {
			return Config{}, err
		}
		sources = append(sources, f)
	}
	sources = append(sources, feeders.NewEnvFeeder(EnvPrefix))

	if err := feeders.Feed(&cfg, sources...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger builds a logrus logger for cfg writing to out.
func NewLogger(cfg LogConfig, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(level)
	}
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
