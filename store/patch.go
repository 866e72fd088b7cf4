package store

import (
	"slices"

	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/todo"
)

type valueKind uint8

const (
	valueSet valueKind = iota
	valueApply
	valueNested
)

// Value is what a patch does to one key: replace it, compute it from the
// current value, or merge a nested mapping into it.
type Value struct {
	kind   valueKind
	v      any
	fn     func(current any) any
	nested Fields
}

// Set replaces the value at a key.
func Set(v any) Value {
	return Value{kind: valueSet, v: v}
}

// Apply replaces the value at a key with fn(current). fn must not modify
// current.
func Apply(fn func(current any) any) Value {
	return Value{kind: valueApply, fn: fn}
}

// ApplyTo is Apply for a known type. A missing or mistyped current value
// reaches fn as the zero T.
func ApplyTo[T any](fn func(current T) T) Value {
	return Apply(func(current any) any {
		c, _ := current.(T)
		return fn(c)
	})
}

// Nested merges f one level down into the map[string]any at a key,
// copying that map. A missing or non-map current value starts empty.
func Nested(f Fields) Value {
	return Value{kind: valueNested, nested: f}
}

func (v Value) resolve(current any) any {
	switch v.kind {
	case valueApply:
		return v.fn(current)
	case valueNested:
		m, _ := current.(map[string]any)
		return mergeMap(m, v.nested)
	default:
		return v.v
	}
}

// Fields is a partial mapping from field names to values.
type Fields map[string]Value

// Patch is a description of one state update: either a fixed mapping
// (Assign) or a function of the state it is applied to (Transform).
// A patch is applied exactly once.
type Patch struct {
	fields    Fields
	transform func(State) Fields
}

// Assign returns a patch that merges f.
func Assign(f Fields) Patch {
	return Patch{fields: f}
}

// Transform returns a patch that merges fn(state), where state is the
// current state at the moment the patch is applied.
func Transform(fn func(State) Fields) Patch {
	return Patch{transform: fn}
}

// Resolve returns the mapping this patch merges into s.
func (p Patch) Resolve(s State) Fields {
	if p.transform != nil {
		return p.transform(s)
	}
	return p.fields
}

// SetRoute replaces the route.
func SetRoute(r route.Route) Fields {
	return Fields{FieldRoute: Set(r)}
}

// SetTodos replaces the todo list.
func SetTodos(todos []todo.Todo) Fields {
	return Fields{FieldTodos: Set(todos)}
}

// AppendTodo appends one todo without touching the previous list's array.
func AppendTodo(t todo.Todo) Value {
	return ApplyTo(func(current []todo.Todo) []todo.Todo {
		return append(slices.Clip(current), t)
	})
}

// NextNavigation increments the navigation counter.
func NextNavigation() Value {
	return ApplyTo(func(current uint64) uint64 { return current + 1 })
}
