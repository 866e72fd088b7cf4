package todoapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/jsonapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/todospa/todo"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(level, " ", msg, " ", args))
}

func (l *captureLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }

func (l *captureLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestLoggingTransportMasksToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "bread")
		assert.Equal(t, "tok-123", r.Header.Get(HeaderCSRFToken))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	logger := &captureLogger{}
	c, err := NewClient(Config{BaseURL: srv.URL, Verbose: true}, logger)
	require.NoError(t, err)

	got, err := c.Create(context.Background(), todo.Todo{ID: "t1", Name: "bread"}, "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "bread", got.Name)

	out := logger.joined()
	assert.Contains(t, out, "Outgoing request")
	assert.Contains(t, out, "Received response")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "tok-123")
}

func TestLoggingTransportHidesLogin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonapi.MediaType)
		if r.Method == http.MethodGet {
			assert.Equal(t, "Bearer bearer-456", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"type":"token","id":"bearer-456","attributes":{"username":"ada"}}}`)
	}))
	t.Cleanup(srv.Close)

	logger := &captureLogger{}
	c, err := NewClient(Config{BaseURL: srv.URL, Verbose: true}, logger)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	_, err = c.List(context.Background())
	require.NoError(t, err)

	out := logger.joined()
	assert.Contains(t, out, "Outgoing request")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "bearer-456")
}

func TestLoggingTransportTruncates(t *testing.T) {
	t.Parallel()

	lt := &loggingTransport{MaxBodyLogSize: 4}
	assert.Equal(t, "abcd [truncated]", lt.truncate("abcdef"))
	assert.Equal(t, "abc", lt.truncate("abc"))
}

func TestChainSkipsNil(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	out := chain(nil, func(r *http.Request) *http.Request {
		r.Header.Set("X-A", "1")
		return nil
	})(req)
	assert.Same(t, req, out)
	assert.Equal(t, "1", req.Header.Get("X-A"))
}
