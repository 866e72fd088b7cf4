package todoapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/GoCodeAlone/todospa"
)

// HeaderCSRFToken carries the page's CSRF token on mutating requests.
const HeaderCSRFToken = "X-CSRF-Token"

// RequestModifierFunc is applied to every outgoing request before it is sent.
type RequestModifierFunc func(*http.Request) *http.Request

// chain runs modifiers in order. A nil result keeps the previous request.
func chain(mods ...RequestModifierFunc) RequestModifierFunc {
	return func(req *http.Request) *http.Request {
		for _, m := range mods {
			if m == nil {
				continue
			}
			if next := m(req); next != nil {
				req = next
			}
		}
		return req
	}
}

type secretBodiesKey struct{}

// withSecretBodies marks requests whose bodies must never be logged.
func withSecretBodies(ctx context.Context) context.Context {
	return context.WithValue(ctx, secretBodiesKey{}, true)
}

func hasSecretBodies(req *http.Request) bool {
	secret, _ := req.Context().Value(secretBodiesKey{}).(bool)
	return secret
}

// loggingTransport logs requests and responses at debug level.
type loggingTransport struct {
	Transport      http.RoundTripper
	Logger         todospa.Logger
	LogHeaders     bool
	LogBody        bool
	MaxBodyLogSize int
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := fmt.Sprintf("%p", req)
	start := time.Now()

	t.logRequest(id, req)

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		t.Logger.Error("Request failed",
			"id", id,
			"url", req.URL.String(),
			"method", req.Method,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return resp, fmt.Errorf("http request failed: %w", err)
	}

	t.logResponse(id, req.URL.String(), resp, duration, !hasSecretBodies(req))
	return resp, nil
}

func (t *loggingTransport) logRequest(id string, req *http.Request) {
	basic := req.Method + " " + req.URL.String()
	if !t.LogHeaders && !t.LogBody {
		t.Logger.Debug("Outgoing request", "id", id, "request", basic, "content_length", req.ContentLength)
		return
	}

	masked := req.Clone(req.Context())
	for _, h := range []string{HeaderCSRFToken, "Authorization"} {
		if masked.Header.Get(h) != "" {
			masked.Header.Set(h, "[REDACTED]")
		}
	}
	withBody := false
	if t.LogBody && req.GetBody != nil && !hasSecretBodies(req) {
		if body, err := req.GetBody(); err == nil {
			masked.Body, withBody = body, true
		}
	}
	dump, err := httputil.DumpRequestOut(masked, withBody)
	if err != nil {
		t.Logger.Debug("Outgoing request (dump failed)", "id", id, "request", basic, "error", err)
		return
	}
	t.Logger.Debug("Outgoing request", "id", id, "request", basic, "details", t.truncate(string(dump)))
}

func (t *loggingTransport) logResponse(id, url string, resp *http.Response, duration time.Duration, withBody bool) {
	basic := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !t.LogHeaders && !t.LogBody {
		t.Logger.Debug("Received response",
			"id", id,
			"response", basic,
			"url", url,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}

	var details strings.Builder
	fmt.Fprintf(&details, "HTTP %s\r\n", resp.Status)
	if t.LogHeaders {
		for k, v := range resp.Header {
			fmt.Fprintf(&details, "%s: %s\r\n", k, strings.Join(v, ", "))
		}
	}
	if t.LogBody && withBody && resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			t.Logger.Debug("Received response (body read failed)", "id", id, "response", basic, "error", err)
			return
		}
		details.WriteString("\r\n")
		details.Write(body)
	}

	t.Logger.Debug("Received response",
		"id", id,
		"response", basic,
		"url", url,
		"duration_ms", duration.Milliseconds(),
		"details", t.truncate(details.String()),
	)
}

func (t *loggingTransport) truncate(s string) string {
	if t.MaxBodyLogSize <= 0 || len(s) <= t.MaxBodyLogSize {
		return s
	}
	return s[:t.MaxBodyLogSize] + " [truncated]"
}
