// Package todoapi is the client for the remote todo service. It speaks
// JSON:API over HTTP, signs in for a bearer token and attaches the page's
// CSRF token to mutating requests.
package todoapi

import (
	"fmt"
	"net/url"
	"time"
)

// Config defines the connection settings for the todo service client.
//
// Example YAML configuration:
//
//	base_url: "http://localhost:8080"
//	email: "ada@example.com"
//	request_timeout: 10s
//	verbose: true
//	verbose_options:
//	  log_headers: true
//	  max_body_log_size: 2048
//
// Example environment variables:
//
//	TODOSPA_API_BASE_URL=http://localhost:8080
//	TODOSPA_API_PASSWORD=secret
//	TODOSPA_API_VERBOSE=true
type Config struct {
	// BaseURL is the scheme and host of the todo service. Required.
	BaseURL string `yaml:"base_url" toml:"base_url" json:"base_url" env:"BASE_URL"`

	// Email and Password sign the client in at startup. Without an email
	// the client stays anonymous.
	Email    string `yaml:"email" toml:"email" json:"email" env:"EMAIL"`
	Password string `yaml:"password" toml:"password" json:"password" env:"PASSWORD"`

	// LoginPath is the API login endpoint.
	// Default: /api/v1/login
	LoginPath string `yaml:"login_path" toml:"login_path" json:"login_path" env:"LOGIN_PATH"`

	// TodosPath is the collection endpoint.
	// Default: /api/v1/todos
	TodosPath string `yaml:"todos_path" toml:"todos_path" json:"todos_path" env:"TODOS_PATH"`

	// PagePath is the page carrying the csrf-token meta tag.
	// Default: /c
	PagePath string `yaml:"page_path" toml:"page_path" json:"page_path" env:"PAGE_PATH"`

	// MaxIdleConns controls the maximum number of idle connections.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns" toml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS"`

	// MaxIdleConnsPerHost controls the maximum idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" toml:"max_idle_conns_per_host" json:"max_idle_conns_per_host" env:"MAX_IDLE_CONNS_PER_HOST"`

	// IdleConnTimeout is how long an idle connection stays open.
	// Default: 90 seconds
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" toml:"idle_conn_timeout" json:"idle_conn_timeout" env:"IDLE_CONN_TIMEOUT"`

	// RequestTimeout bounds a whole request including reading the body.
	// Default: 30 seconds
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout" env:"REQUEST_TIMEOUT"`

	// TLSTimeout is the maximum time waiting for a TLS handshake.
	// Default: 10 seconds
	TLSTimeout time.Duration `yaml:"tls_timeout" toml:"tls_timeout" json:"tls_timeout" env:"TLS_TIMEOUT"`

	// DisableKeepAlives uses every connection for a single request.
	DisableKeepAlives bool `yaml:"disable_keep_alives" toml:"disable_keep_alives" json:"disable_keep_alives" env:"DISABLE_KEEP_ALIVES"`

	// Verbose logs every request and response at debug level.
	Verbose bool `yaml:"verbose" toml:"verbose" json:"verbose" env:"VERBOSE"`

	VerboseOptions *VerboseOptions `yaml:"verbose_options" toml:"verbose_options" json:"verbose_options"`
}

// VerboseOptions configures what verbose logging includes.
type VerboseOptions struct {
	// LogHeaders includes request and response headers. The CSRF and
	// Authorization headers are always masked.
	LogHeaders bool `yaml:"log_headers" toml:"log_headers" json:"log_headers" env:"LOG_HEADERS"`

	// LogBody includes request and response bodies.
	LogBody bool `yaml:"log_body" toml:"log_body" json:"log_body" env:"LOG_BODY"`

	// MaxBodyLogSize truncates logged bodies. 0 means no limit.
	MaxBodyLogSize int `yaml:"max_body_log_size" toml:"max_body_log_size" json:"max_body_log_size" env:"MAX_BODY_LOG_SIZE"`
}

// Validate checks the configuration values and sets defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config validation error: %w", ErrBaseURLRequired)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config validation error: %w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	if c.Email != "" && c.Password == "" {
		return fmt.Errorf("config validation error: %w", ErrPasswordRequired)
	}
	if c.LoginPath == "" {
		c.LoginPath = "/api/v1/login"
	}
	if c.TodosPath == "" {
		c.TodosPath = "/api/v1/todos"
	}
	if c.PagePath == "" {
		c.PagePath = "/c"
	}

	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.TLSTimeout == 0 {
		c.TLSTimeout = 10 * time.Second
	}

	if c.Verbose && c.VerboseOptions == nil {
		c.VerboseOptions = &VerboseOptions{
			LogHeaders:     true,
			LogBody:        true,
			MaxBodyLogSize: 10000,
		}
	}
	return nil
}
