package service

import (
	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/store"
)

// Route records the route transition in the state so later services and
// the renderer can see what arrived and what left. Register it first.
func Route() Service {
	return Func("route", func(t Transition) Result {
		return Result{State: store.Fields{
			store.FieldTransition: store.Set(route.Detect(t.Previous.Route, t.Current.Route)),
		}}
	})
}

// OnArrive schedules action whenever kind has just been arrived at. It
// relies on Route having run earlier in the same layer.
func OnArrive(name string, kind route.Kind, action string) Service {
	return Func(name, func(t Transition) Result {
		if !t.Current.Transition.Arrived(kind) {
			return Result{}
		}
		return Result{Next: []Command{{Action: action}}}
	})
}
