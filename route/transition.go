package route

import (
	"maps"
	"slices"
)

// Transition records which segment kinds were arrived at and which were left
// between two routes. It is derived on every state change, never stored as
// the source of truth.
type Transition struct {
	Arrive map[Kind]struct{} `json:"arrive"`
	Leave  map[Kind]struct{} `json:"leave"`
}

// Detect compares two routes by kind membership at any depth. A kind is in
// Arrive if current has it and previous does not; Leave is symmetric. An
// empty previous route makes every segment of current arrive.
func Detect(previous, current Route) Transition {
	t := Transition{
		Arrive: make(map[Kind]struct{}),
		Leave:  make(map[Kind]struct{}),
	}
	for _, s := range current {
		if !previous.Has(s.Kind) {
			t.Arrive[s.Kind] = struct{}{}
		}
	}
	for _, s := range previous {
		if !current.Has(s.Kind) {
			t.Leave[s.Kind] = struct{}{}
		}
	}
	return t
}

// Arrived reports whether kind was arrived at.
func (t Transition) Arrived(kind Kind) bool {
	_, ok := t.Arrive[kind]
	return ok
}

// Left reports whether kind was left behind.
func (t Transition) Left(kind Kind) bool {
	_, ok := t.Leave[kind]
	return ok
}

// Empty reports whether nothing arrived and nothing left.
func (t Transition) Empty() bool {
	return len(t.Arrive) == 0 && len(t.Leave) == 0
}

// ArrivedKinds returns the arrived kinds sorted by name.
func (t Transition) ArrivedKinds() []Kind {
	return slices.Sorted(maps.Keys(t.Arrive))
}

// LeftKinds returns the departed kinds sorted by name.
func (t Transition) LeftKinds() []Kind {
	return slices.Sorted(maps.Keys(t.Leave))
}
