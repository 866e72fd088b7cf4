// Package action holds the operations the user interface invokes. Pure
// actions push a patch immediately; remote actions issue a request and
// push exactly one patch when it succeeds.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/service"
	"github.com/GoCodeAlone/todospa/store"
	"github.com/GoCodeAlone/todospa/todo"
)

// Action names accepted by Dispatch.
const (
	Navigate   = "navigate"
	LoadTodos  = "load-todos"
	CreateTodo = "create-todo"
)

const eventSource = "todospa.action"

// Pusher is the part of the update stream actions need.
type Pusher interface {
	Push(store.Patch)
	Current() store.State
}

// TodoAPI is the remote todo service.
type TodoAPI interface {
	List(ctx context.Context) ([]todo.Todo, error)
	Create(ctx context.Context, t todo.Todo, csrfToken string) (todo.Todo, error)
}

// Status is the state of one request-backed invocation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRequested Status = "requested"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Event is the data of the action CloudEvents.
type Event struct {
	Action  string `json:"action"`
	Request string `json:"request"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Set is the bound set of actions for one running application.
type Set struct {
	stream    Pusher
	api       TodoAPI
	router    *route.Router
	logger    todospa.Logger
	subject   todospa.Subject
	keepStale bool
	now       func() time.Time

	// inflight counts running requests. Wait may overlap new requests.
	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

// Option configures a Set.
type Option func(*Set)

// WithLogger sets the logger.
func WithLogger(l todospa.Logger) Option {
	return func(s *Set) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSubject sets where action events are emitted.
func WithSubject(subject todospa.Subject) Option {
	return func(s *Set) { s.subject = subject }
}

// KeepStaleResponses applies load responses even when the user navigated
// away while the request was in flight.
func KeepStaleResponses(keep bool) Option {
	return func(s *Set) { s.keepStale = keep }
}

// WithClock replaces time.Now for the creation date of new todos.
func WithClock(now func() time.Time) Option {
	return func(s *Set) { s.now = now }
}

// New binds the actions to a stream, a remote API and a router.
func New(stream Pusher, api TodoAPI, router *route.Router, opts ...Option) *Set {
	s := &Set{
		stream: stream,
		api:    api,
		router: router,
		logger: todospa.NopLogger{},
		now:    time.Now,
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NavigateTo returns the patch that moves to r. Moving to a different route
// starts a new navigation generation; navigating to the current route
// changes nothing.
func NavigateTo(r route.Route) store.Patch {
	return store.Transform(func(cur store.State) store.Fields {
		if cur.Route.Equal(r) {
			return nil
		}
		return store.Fields{
			store.FieldRoute:      store.Set(r),
			store.FieldNavigation: store.NextNavigation(),
		}
	})
}

// Navigate pushes NavigateTo(r).
func (s *Set) Navigate(r route.Route) {
	s.logger.Debug("Navigate", "route", r.String())
	s.stream.Push(NavigateTo(r))
}

// NavigatePath resolves p with the router and navigates there. It returns
// the resolved route, which is the not-found route for unknown paths.
func (s *Set) NavigatePath(p string) route.Route {
	r := s.router.FromPath(p)
	s.Navigate(r)
	return r
}

// LoadTodos fetches the todo list in the background and replaces the list
// in the state when the response arrives. A failure leaves state alone.
// Unless stale responses are kept, the response is dropped when the view
// it was loaded for has been left by then.
func (s *Set) LoadTodos(ctx context.Context) {
	kind := s.stream.Current().Route.Local().Kind
	s.request(ctx, LoadTodos, func(ctx context.Context) (store.Patch, error) {
		todos, err := s.api.List(ctx)
		if err != nil {
			return store.Patch{}, err
		}
		s.logger.Debug("Received todos", "kind", kind, "ids", todo.IDs(todos))
		if !s.keepStale && !s.stream.Current().Route.Has(kind) {
			return store.Patch{}, fmt.Errorf("%w: %s was left", errStale, kind)
		}
		return s.guard(kind, store.SetTodos(todos)), nil
	})
}

// CreateTodo posts a new todo in the background and appends the echoed
// item to the list when the response arrives. It returns the id chosen
// for the item.
func (s *Set) CreateTodo(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	cur := s.stream.Current()
	item := todo.Todo{
		ID:          todo.NewUniqueID(func(id string) bool { return todo.Contains(cur.Todos, id) }),
		Name:        name,
		DateCreated: s.now().UTC().Truncate(time.Second),
	}
	token := cur.Session.CSRFToken

	s.request(ctx, CreateTodo, func(ctx context.Context) (store.Patch, error) {
		created, err := s.api.Create(ctx, item, token)
		if err != nil {
			return store.Patch{}, err
		}
		return store.Assign(store.Fields{store.FieldTodos: store.AppendTodo(created)}), nil
	})
	return item.ID, nil
}

// Dispatch runs the action named by cmd.
func (s *Set) Dispatch(ctx context.Context, cmd service.Command) error {
	switch cmd.Action {
	case Navigate:
		switch p := cmd.Payload.(type) {
		case route.Route:
			s.Navigate(p)
		case string:
			s.NavigatePath(p)
		default:
			return fmt.Errorf("%w: %s wants a route or a path, got %T", ErrInvalidPayload, cmd.Action, cmd.Payload)
		}
	case LoadTodos:
		s.LoadTodos(ctx)
	case CreateTodo:
		name, ok := cmd.Payload.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants a name, got %T", ErrInvalidPayload, cmd.Action, cmd.Payload)
		}
		if _, err := s.CreateTodo(ctx, name); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}

// Runner adapts Dispatch to the service layer. Dispatch errors are logged.
func (s *Set) Runner(ctx context.Context) service.Runner {
	return func(cmd service.Command) {
		if err := s.Dispatch(ctx, cmd); err != nil {
			s.logger.Error("Failed to dispatch action", "action", cmd.Action, "error", err)
		}
	}
}

// Wait blocks until every request started so far has completed and its
// patch, if any, has been pushed.
func (s *Set) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

func (s *Set) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *Set) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
}

// request runs fn in the background. A successful fn's patch is pushed;
// an error is logged and reported, and nothing is pushed.
func (s *Set) request(ctx context.Context, name string, fn func(context.Context) (store.Patch, error)) {
	id := uuid.NewString()
	s.emit(ctx, todospa.EventTypeActionRequested, Event{Action: name, Request: id, Status: StatusRequested})

	s.begin()
	go func() {
		defer s.end()
		start := time.Now()

		patch, err := fn(ctx)
		if errors.Is(err, errStale) {
			s.logger.Warn("Dropped stale response", "action", name, "request", id, "reason", err)
			s.emit(ctx, todospa.EventTypeActionStale, Event{Action: name, Request: id, Status: StatusSucceeded})
			return
		}
		if err != nil {
			s.logger.Error("Action failed",
				"action", name,
				"request", id,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			s.emit(ctx, todospa.EventTypeActionFailed, Event{Action: name, Request: id, Status: StatusFailed, Error: err.Error()})
			return
		}

		s.stream.Push(patch)
		s.logger.Debug("Action succeeded", "action", name, "request", id, "duration_ms", time.Since(start).Milliseconds())
		s.emit(ctx, todospa.EventTypeActionSucceeded, Event{Action: name, Request: id, Status: StatusSucceeded})
	}()
}

// guard makes f conditional on kind still being part of the route when the
// patch is applied. It covers a navigation queued between the check in the
// request goroutine and the merge, and has no effects of its own.
func (s *Set) guard(kind route.Kind, f store.Fields) store.Patch {
	if s.keepStale {
		return store.Assign(f)
	}
	return store.Transform(func(cur store.State) store.Fields {
		if !cur.Route.Has(kind) {
			return nil
		}
		return f
	})
}

func (s *Set) emit(ctx context.Context, eventType string, data Event) {
	todospa.Emit(ctx, s.subject, s.logger, eventSource, eventType, data)
}
