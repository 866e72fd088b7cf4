// Package app wires the todo client together: the router, the update
// stream, the service layer, the actions, the location synchronizer and
// the renderer. An App is an explicit value; nothing is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/action"
	"github.com/GoCodeAlone/todospa/render"
	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/service"
	"github.com/GoCodeAlone/todospa/store"
	"github.com/GoCodeAlone/todospa/todoapi"
)

const eventSource = "todospa.app"

// TokenSource reads the CSRF token once at startup.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// Authenticator signs the client in once at startup. It returns
// todoapi.ErrNoCredentials to stay anonymous.
type Authenticator interface {
	SignIn(ctx context.Context) (todoapi.Login, error)
}

// App is one running instance of the todo client.
type App struct {
	*todospa.StdSubject

	cfg      Config
	logger   todospa.Logger
	router   *route.Router
	stream   *store.Stream
	layer    *service.Layer
	actions  *action.Set
	api      action.TodoAPI
	location Location
	renderer render.Renderer

	mu      sync.Mutex
	started bool
	ctx     context.Context
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger shared by every component.
func WithLogger(l todospa.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAPI replaces the todo service client built from Config.API.
func WithAPI(api action.TodoAPI) Option {
	return func(a *App) { a.api = api }
}

// WithLocation sets the address bar. The default is a History starting at
// the configured start path.
func WithLocation(l Location) Option {
	return func(a *App) { a.location = l }
}

// WithRenderer sets the renderer called for every revision.
func WithRenderer(r render.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// New builds an App from cfg. The api section is only used when no
// WithAPI option is given.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		logger: todospa.NopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.StdSubject = todospa.NewStdSubject(a.logger)

	router, err := NewRouter()
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	a.router = router

	if a.api == nil {
		client, err := todoapi.NewClient(cfg.API, a.logger)
		if err != nil {
			return nil, fmt.Errorf("build todo client: %w", err)
		}
		a.api = client
	}
	if a.location == nil {
		a.location = NewHistory(cfg.App.StartPath)
	}

	start := a.location.Path()
	if start == "" || start == "/" {
		start = cfg.App.StartPath
	}
	initial := store.State{Route: router.FromPath(start)}

	a.layer = service.NewLayer(a.logger,
		service.Route(),
		service.OnArrive("todo-load", Card, action.LoadTodos),
	)
	a.stream = store.NewStream(initial,
		store.WithLogger(a.logger),
		store.WithSubject(a),
		store.WithMiddleware(a.layer.Middleware(a.runCommand)),
	)
	a.actions = action.New(a.stream, a.api, router,
		action.WithLogger(a.logger),
		action.WithSubject(a),
		action.KeepStaleResponses(cfg.App.KeepStaleResponses),
	)

	a.stream.Subscribe(a.syncLocation)
	a.stream.Subscribe(a.emitTransition)
	if a.renderer != nil {
		a.stream.Subscribe(a.render)
	}
	a.logger.Debug("Application assembled",
		"start", initial.Route.String(),
		"routes", router.Patterns(),
		"services", a.layer.Names(),
	)
	return a, nil
}

// Actions returns the actions bound to this App.
func (a *App) Actions() *action.Set { return a.actions }

// Router returns the route table.
func (a *App) Router() *route.Router { return a.router }

// Location returns the address bar.
func (a *App) Location() Location { return a.location }

// State returns the current state.
func (a *App) State() store.State { return a.stream.Current() }

// Subscribe adds a subscriber to the update stream.
func (a *App) Subscribe(fn store.Subscriber) (cancel func()) { return a.stream.Subscribe(fn) }

// Settle waits until in-flight requests have completed and every patch
// pushed so far has been published. Services may start new requests from
// a published revision, so it repeats until the revision stops moving.
func (a *App) Settle(ctx context.Context) error {
	last := ^uint64(0)
	for {
		a.actions.Wait()
		if err := a.stream.Sync(ctx); err != nil {
			return err
		}
		rev := a.stream.Revision()
		if rev == last {
			return nil
		}
		last = rev
	}
}

// Run performs the initial load and runs the update loop until ctx is
// done. Before the loop starts the client signs in, then reads the CSRF
// token once. Failures are logged; the client then goes on without a
// session or without a token.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.ctx = ctx
	a.mu.Unlock()

	if sess, ok := a.startSession(ctx); ok {
		a.stream.Push(store.Assign(store.Fields{store.FieldSession: store.Set(sess)}))
	}

	a.logger.Info("Application started", "path", a.location.Path())
	todospa.Emit(ctx, a, a.logger, eventSource, todospa.EventTypeApplicationStarted, map[string]any{
		"route": a.stream.Current().Route.String(),
	})

	err := a.stream.Run(ctx)
	a.actions.Wait()

	a.logger.Info("Application stopped")
	todospa.Emit(context.WithoutCancel(ctx), a, a.logger, eventSource, todospa.EventTypeApplicationStopped, nil)
	return err
}

func (a *App) startSession(ctx context.Context) (store.Session, bool) {
	var sess store.Session
	changed := false
	if auth, ok := a.api.(Authenticator); ok {
		login, err := auth.SignIn(ctx)
		switch {
		case errors.Is(err, todoapi.ErrNoCredentials):
			a.logger.Debug("Running without a login")
		case err != nil:
			a.logger.Warn("Failed to sign in", "error", err)
		default:
			a.logger.Info("Signed in", "user", login.Username)
			sess.User, sess.AuthToken = login.Username, login.Token
			changed = true
		}
	}
	if ts, ok := a.api.(TokenSource); ok {
		token, err := ts.FetchToken(ctx)
		if err != nil {
			a.logger.Warn("Failed to read CSRF token", "error", err)
		} else {
			sess.CSRFToken = token
			changed = true
		}
	}
	return sess, changed
}

func (a *App) runContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// runCommand executes service commands after their revision has been
// published.
func (a *App) runCommand(cmd service.Command) {
	if err := a.actions.Dispatch(a.runContext(), cmd); err != nil {
		a.logger.Error("Failed to dispatch action", "action", cmd.Action, "error", err)
	}
}

// syncLocation writes the path of the current route to the location.
func (a *App) syncLocation(rev store.Revision) {
	path, err := a.router.ToPath(rev.State.Route)
	if err != nil {
		a.logger.Error("Failed to build path for route", "route", rev.State.Route.String(), "error", err)
		return
	}
	if path == a.location.Path() {
		return
	}
	a.location.Replace(path)
	todospa.Emit(a.runContext(), a, a.logger, eventSource, todospa.EventTypeLocationSync, map[string]any{
		"path":     path,
		"revision": rev.Seq,
	})
}

func (a *App) emitTransition(rev store.Revision) {
	t := rev.State.Transition
	ctx := a.runContext()
	for _, k := range t.LeftKinds() {
		todospa.Emit(ctx, a, a.logger, eventSource, todospa.EventTypeRouteLeft, map[string]any{"kind": k, "revision": rev.Seq})
	}
	for _, k := range t.ArrivedKinds() {
		todospa.Emit(ctx, a, a.logger, eventSource, todospa.EventTypeRouteArrived, map[string]any{"kind": k, "revision": rev.Seq})
	}
}

func (a *App) render(rev store.Revision) {
	err := a.renderer.Render(render.Frame{
		Revision: rev.Seq,
		State:    rev.State,
		Local:    rev.State.Route.Local(),
		Actions:  a.actions,
	})
	if err != nil {
		a.logger.Error("Failed to render", "revision", rev.Seq, "error", err)
	}
}
