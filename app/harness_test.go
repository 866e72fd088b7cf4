package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/render"
	"github.com/GoCodeAlone/todospa/server"
	"github.com/GoCodeAlone/todospa/todo"
	"github.com/GoCodeAlone/todospa/todoapi"
)

var errStoreDown = errors.New("store unavailable")

const (
	harnessEmail    = "harness@example.com"
	harnessUser     = "harness"
	harnessPassword = "harness-password"
)

// flakyStore fails creates while failCreate is set.
type flakyStore struct {
	*server.MemoryStore
	mu         sync.Mutex
	failCreate bool
}

func (s *flakyStore) setFailCreate(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = v
}

func (s *flakyStore) Create(ctx context.Context, t todo.Todo) (todo.Todo, error) {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return todo.Todo{}, errStoreDown
	}
	return s.MemoryStore.Create(ctx, t)
}

type frameLog struct {
	mu     sync.Mutex
	frames []render.Frame
}

func (l *frameLog) Render(f render.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
	return nil
}

func (l *frameLog) all() []render.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]render.Frame(nil), l.frames...)
}

type eventLog struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (l *eventLog) OnEvent(_ context.Context, e cloudevents.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ObserverID() string { return "event-log" }

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

// kinds returns the route kinds carried by events of eventType, in order.
func (l *eventLog) kinds(eventType string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []string
	for _, e := range l.events {
		if e.Type() != eventType {
			continue
		}
		var data struct {
			Kind string `json:"kind"`
		}
		if err := e.DataAs(&data); err == nil {
			kinds = append(kinds, data.Kind)
		}
	}
	return kinds
}

// harness runs an App against a real demo server.
type harness struct {
	store   *flakyStore
	srv     *server.Server
	hs      *httptest.Server
	history *History
	frames  *frameLog
	events  *eventLog
	app     *App

	mu       sync.Mutex
	requests map[string]int
	hold     chan struct{}

	cancel context.CancelFunc
	done   chan error
}

func newHarness(startPath string, seed []todo.Todo, cfg Config) (*harness, error) {
	h := &harness{
		store:    &flakyStore{MemoryStore: server.NewMemoryStore(seed...)},
		history:  NewHistory(startPath),
		frames:   &frameLog{},
		events:   &eventLog{},
		requests: map[string]int{},
	}

	u, err := server.NewUser(harnessEmail, harnessUser, harnessPassword, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	if err := h.store.CreateUser(context.Background(), u); err != nil {
		return nil, err
	}
	if cfg.API.Email == "" {
		cfg.API.Email, cfg.API.Password = harnessEmail, harnessPassword
	}

	scfg := server.Config{CSRFToken: "harness-token", PasswordCost: bcrypt.MinCost}
	if err := scfg.Validate(); err != nil {
		return nil, err
	}
	srv, err := server.New(scfg, h.store, nil)
	if err != nil {
		return nil, err
	}
	h.srv = srv
	h.hs = httptest.NewServer(http.HandlerFunc(h.serve))

	cfg.API.BaseURL = h.hs.URL
	client, err := todoapi.NewClient(cfg.API, nil, todoapi.WithHTTPClient(h.hs.Client()))
	if err != nil {
		h.hs.Close()
		return nil, err
	}

	a, err := New(cfg, WithAPI(client), WithLocation(h.history), WithRenderer(h.frames))
	if err != nil {
		h.hs.Close()
		return nil, err
	}
	if err := a.RegisterObserver(h.events); err != nil {
		h.hs.Close()
		return nil, err
	}
	h.app = a
	return h, nil
}

func (h *harness) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	h.mu.Lock()
	h.requests[key]++
	hold := h.hold
	h.mu.Unlock()

	if hold != nil && key == "GET "+server.PathTodos {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	h.srv.ServeHTTP(w, r)
}

func (h *harness) requestCount(method, path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[method+" "+path]
}

// holdLists delays list responses until the returned func is called.
func (h *harness) holdLists() (release func()) {
	ch := make(chan struct{})
	h.mu.Lock()
	h.hold = ch
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.hold = nil
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.app.Run(ctx) }()
}

func (h *harness) settle() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.app.Settle(ctx)
}

// waitStarted waits until the token has been read and applied.
func (h *harness) waitStarted() error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.app.State().Session.CSRFToken != "" {
			return h.settle()
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("app did not start")
}

func (h *harness) close() error {
	if h.cancel != nil {
		h.cancel()
		select {
		case err := <-h.done:
			if err != nil {
				return err
			}
		case <-time.After(5 * time.Second):
			return fmt.Errorf("app did not stop")
		}
	}
	h.hs.Close()
	return nil
}

var _ todospa.Observer = (*eventLog)(nil)
