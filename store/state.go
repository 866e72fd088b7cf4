// Package store holds the immutable application State, the Patch variants
// that describe updates to it, the Merge that folds a patch into a state,
// and the Update Stream that owns the current state.
package store

import (
	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/todo"
)

// Field names addressable by a patch. Any other name is stored in Extra.
const (
	FieldRoute      = "route"
	FieldTransition = "transition"
	FieldTodos      = "todos"
	FieldSession    = "session"
	FieldNavigation = "navigation"
)

// Session carries transient per-page credentials. User and AuthToken are
// empty for an anonymous client.
type Session struct {
	User      string `json:"user,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// State is one immutable snapshot of the application. A State is never
// modified after it has been published; Merge returns a new one and shares
// whatever it did not touch.
type State struct {
	// Route is where the user is. Never empty once the stream has started.
	Route route.Route `json:"route"`

	// Transition is what arrived and left in the revision that produced
	// this state. Filled by the route service.
	Transition route.Transition `json:"transition"`

	Todos   []todo.Todo `json:"todos"`
	Session Session     `json:"session"`

	// Navigation counts navigations. Remote loads compare it to detect
	// responses that arrive after the user has moved on.
	Navigation uint64 `json:"navigation"`

	// Extra holds fields without a typed home.
	Extra map[string]any `json:"extra,omitempty"`
}

// Get returns the value stored at key, typed fields included.
func (s State) Get(key string) (any, bool) {
	if f, ok := typedFields[key]; ok {
		return f.get(s), true
	}
	v, ok := s.Extra[key]
	return v, ok
}

type field struct {
	get func(State) any
	set func(*State, any) bool
}

// typedField adapts a typed accessor pair. A nil value resets the field to
// its zero value; a value of any other type is rejected.
func typedField[T any](get func(State) T, set func(*State, T)) field {
	return field{
		get: func(s State) any { return get(s) },
		set: func(s *State, v any) bool {
			if v == nil {
				var zero T
				set(s, zero)
				return true
			}
			t, ok := v.(T)
			if ok {
				set(s, t)
			}
			return ok
		},
	}
}

var typedFields = map[string]field{
	FieldRoute: typedField(
		func(s State) route.Route { return s.Route },
		func(s *State, v route.Route) { s.Route = v },
	),
	FieldTransition: typedField(
		func(s State) route.Transition { return s.Transition },
		func(s *State, v route.Transition) { s.Transition = v },
	),
	FieldTodos: typedField(
		func(s State) []todo.Todo { return s.Todos },
		func(s *State, v []todo.Todo) { s.Todos = v },
	),
	FieldSession: typedField(
		func(s State) Session { return s.Session },
		func(s *State, v Session) { s.Session = v },
	),
	FieldNavigation: typedField(
		func(s State) uint64 { return s.Navigation },
		func(s *State, v uint64) { s.Navigation = v },
	),
}
