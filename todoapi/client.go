package todoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sync"

	"github.com/google/jsonapi"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/todo"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// Client talks to the todo service.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	logger   todospa.Logger
	modifier RequestModifierFunc

	mu        sync.RWMutex
	authToken string
}

// Login is the result of a successful sign-in.
type Login struct {
	Token    string
	Username string
}

// token is the resource the login endpoint answers with.
type token struct {
	ID       string `jsonapi:"primary,token"`
	Username string `jsonapi:"attr,username"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the config, e.g. with
// an httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRequestModifier appends a modifier applied to every request.
func WithRequestModifier(fn RequestModifierFunc) Option {
	return func(c *Client) { c.modifier = chain(c.modifier, fn) }
}

// NewClient validates cfg and builds a client for it.
func NewClient(cfg Config, logger todospa.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = todospa.NopLogger{}
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	c := &Client{
		cfg:    cfg,
		base:   base,
		logger: logger,
	}
	c.modifier = chain(c.authorize)
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg, logger)
	}
	return c, nil
}

func newHTTPClient(cfg Config, logger todospa.Logger) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.Verbose && cfg.VerboseOptions != nil {
		transport = &loggingTransport{
			Transport:      transport,
			Logger:         logger,
			LogHeaders:     cfg.VerboseOptions.LogHeaders,
			LogBody:        cfg.VerboseOptions.LogBody,
			MaxBodyLogSize: cfg.VerboseOptions.MaxBodyLogSize,
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
}

// List fetches every todo.
func (c *Client) List(ctx context.Context) ([]todo.Todo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.TodosPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", jsonapi.MediaType)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	items, err := jsonapi.UnmarshalManyPayload(resp.Body, reflect.TypeOf(new(todo.Todo)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode todo list: %w", ErrUnexpectedResult, err)
	}
	todos := make([]todo.Todo, 0, len(items))
	for _, item := range items {
		t, ok := item.(*todo.Todo)
		if !ok {
			return nil, fmt.Errorf("%w: got %T in todo list", ErrUnexpectedResult, item)
		}
		todos = append(todos, *t)
	}
	return todos, nil
}

// Create posts t and returns the todo echoed by the service. csrfToken is
// sent as X-CSRF-Token when non-empty.
func (c *Client) Create(ctx context.Context, t todo.Todo, csrfToken string) (todo.Todo, error) {
	var body bytes.Buffer
	if err := jsonapi.MarshalPayload(&body, &t); err != nil {
		return todo.Todo{}, fmt.Errorf("encode todo: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.TodosPath, bytes.NewReader(body.Bytes()))
	if err != nil {
		return todo.Todo{}, err
	}
	req.Header.Set("Content-Type", jsonapi.MediaType)
	req.Header.Set("Accept", jsonapi.MediaType)
	if csrfToken != "" {
		req.Header.Set(HeaderCSRFToken, csrfToken)
	}

	resp, err := c.do(req)
	if err != nil {
		return todo.Todo{}, err
	}
	defer resp.Body.Close()

	var created todo.Todo
	if err := jsonapi.UnmarshalPayload(resp.Body, &created); err != nil {
		return todo.Todo{}, fmt.Errorf("%w: decode created todo: %w", ErrUnexpectedResult, err)
	}
	return created, nil
}

// SignIn logs in with the configured email and password. It returns
// ErrNoCredentials when no email is configured.
func (c *Client) SignIn(ctx context.Context) (Login, error) {
	if c.cfg.Email == "" {
		return Login{}, ErrNoCredentials
	}
	return c.Login(ctx, c.cfg.Email, c.cfg.Password)
}

// Login signs in and sends the returned token as a bearer token on every
// later request.
func (c *Client) Login(ctx context.Context, email, password string) (Login, error) {
	body, err := json.Marshal(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password})
	if err != nil {
		return Login{}, fmt.Errorf("encode login: %w", err)
	}

	req, err := c.newRequest(withSecretBodies(ctx), http.MethodPost, c.cfg.LoginPath, bytes.NewReader(body))
	if err != nil {
		return Login{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", jsonapi.MediaType)

	resp, err := c.do(req)
	if err != nil {
		return Login{}, err
	}
	defer resp.Body.Close()

	var tok token
	if err := jsonapi.UnmarshalPayload(resp.Body, &tok); err != nil {
		return Login{}, fmt.Errorf("%w: decode login token: %w", ErrUnexpectedResult, err)
	}
	if tok.ID == "" {
		return Login{}, fmt.Errorf("%w: login token has no id", ErrUnexpectedResult)
	}

	c.mu.Lock()
	c.authToken = tok.ID
	c.mu.Unlock()
	c.logger.Debug("Signed in", "username", tok.Username)
	return Login{Token: tok.ID, Username: tok.Username}, nil
}

// authorize adds the bearer token of the last login, if any.
func (c *Client) authorize(req *http.Request) *http.Request {
	c.mu.RLock()
	tok := c.authToken
	c.mu.RUnlock()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req
}

// FetchToken loads the page and returns its CSRF token.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.PagePath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return TokenFromPage(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	return c.modifier(req), nil
}

// do sends req and turns any non-2xx response into a *StatusError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	se := &StatusError{Method: req.Method, URL: req.URL.String(), Code: resp.StatusCode}
	var payload jsonapi.ErrorsPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&payload); err == nil {
		for _, e := range payload.Errors {
			if e != nil && e.Title != "" {
				se.Titles = append(se.Titles, e.Title)
			}
		}
	}
	return nil, se
}
