// Package server is the demo todo service: it serves the single-page
// shell with a CSRF token and a JSON:API todo collection to signed-in
// users, and the sign-up and login pages that create their sessions.
package server

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Config defines the settings of the demo server.
//
// Example YAML configuration:
//
//	host: "127.0.0.1"
//	port: 8080
//	db_path: "./todos.db"
//	site_name: "Todos"
//	password_cost: 12
type Config struct {
	Host string `yaml:"host" toml:"host" json:"host" env:"HOST"`

	// Port to listen on.
	// Default: 8080
	Port int `yaml:"port" toml:"port" json:"port" env:"PORT"`

	// DBPath is the bbolt database file. Empty keeps todos in memory.
	DBPath string `yaml:"db_path" toml:"db_path" json:"db_path" env:"DB_PATH"`

	// CSRFToken fixes the token rendered into the page. Empty generates a
	// random token at startup.
	CSRFToken string `yaml:"csrf_token" toml:"csrf_token" json:"csrf_token" env:"CSRF_TOKEN"`

	// SiteName is the page title.
	// Default: Todos
	SiteName string `yaml:"site_name" toml:"site_name" json:"site_name" env:"SITE_NAME"`

	// SessionKey authenticates the session cookie. Empty generates a random
	// key at startup, which signs everyone out on restart.
	SessionKey string `yaml:"session_key" toml:"session_key" json:"session_key" env:"SESSION_KEY"`

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool `yaml:"secure_cookies" toml:"secure_cookies" json:"secure_cookies" env:"SECURE_COOKIES"`

	// PasswordCost is the bcrypt work factor for new passwords.
	// Default: 12
	PasswordCost int `yaml:"password_cost" toml:"password_cost" json:"password_cost" env:"PASSWORD_COST"`

	// MaxBodyBytes caps request bodies.
	// Default: 1 MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes" json:"max_body_bytes" env:"MAX_BODY_BYTES"`

	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Validate checks the configuration values and sets defaults.
func (c *Config) Validate() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config validation error: %w: %d", ErrInvalidPort, c.Port)
	}
	if c.SiteName == "" {
		c.SiteName = "Todos"
	}
	if c.PasswordCost == 0 {
		c.PasswordCost = DefaultPasswordCost
	}
	if c.PasswordCost < bcrypt.MinCost || c.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("config validation error: %w: %d", ErrInvalidPasswordCost, c.PasswordCost)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
