// Package service runs reactive services after every state transition.
//
// A service looks at the previous and current state and may return an
// augmentation, merged into the current state within the same revision,
// and commands naming follow-up actions. Services never push patches
// themselves; commands are executed by a runner once all services for the
// transition have run.
package service

import (
	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/store"
)

// Transition is the pair of states a service is run with.
type Transition struct {
	Previous store.State
	Current  store.State
}

// Command asks the runner to invoke exactly one named action.
type Command struct {
	Action  string
	Payload any
}

// Result is what a service returns. The zero Result means no effect.
type Result struct {
	// State is merged into the current state before later services run.
	State store.Fields

	// Next lists actions to invoke after every service has run.
	Next []Command
}

// Service is a pure function of a transition.
type Service interface {
	Name() string
	Run(Transition) Result
}

type funcService struct {
	name string
	fn   func(Transition) Result
}

func (f funcService) Name() string { return f.name }
func (f funcService) Run(t Transition) Result { return f.fn(t) }

// Func adapts a plain function to the Service interface.
func Func(name string, fn func(Transition) Result) Service {
	return funcService{name: name, fn: fn}
}

// Runner executes a command produced by a service.
type Runner func(Command)

// Layer is the fixed, ordered list of services registered at startup.
type Layer struct {
	services []Service
	logger   todospa.Logger
}

// NewLayer creates a layer running services in the given order.
func NewLayer(logger todospa.Logger, services ...Service) *Layer {
	if logger == nil {
		logger = todospa.NopLogger{}
	}
	return &Layer{
		services: append([]Service(nil), services...),
		logger:   logger,
	}
}

// Names returns the registered service names in order.
func (l *Layer) Names() []string {
	names := make([]string, len(l.services))
	for i, s := range l.services {
		names[i] = s.Name()
	}
	return names
}

// Apply runs every service in order. Each augmentation is merged before the
// next service runs, so later services see it. It returns the augmented
// state and the collected commands.
func (l *Layer) Apply(prev, cur store.State) (store.State, []Command) {
	var commands []Command
	for _, svc := range l.services {
		res := svc.Run(Transition{Previous: prev, Current: cur})
		if len(res.State) > 0 {
			cur = store.Merge(cur, store.Assign(res.State))
		}
		for _, cmd := range res.Next {
			l.logger.Debug("Service scheduled action", "service", svc.Name(), "action", cmd.Action)
			commands = append(commands, cmd)
		}
	}
	return cur, commands
}

// Middleware adapts the layer to the update stream. Commands run through
// run after the revision has been published.
func (l *Layer) Middleware(run Runner) store.Middleware {
	return func(prev, cur store.State) (store.State, []func()) {
		next, commands := l.Apply(prev, cur)
		deferred := make([]func(), len(commands))
		for i, cmd := range commands {
			deferred[i] = func() { run(cmd) }
		}
		return next, deferred
	}
}
