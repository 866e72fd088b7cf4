// Package todo holds the todo resource exchanged with the remote service.
package todo

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ResourceType is the JSON:API resource type of a todo.
const ResourceType = "todos"

// Todo is a single todo item. The struct tags describe its JSON:API resource
// object: {type: "todos", id, attributes: {date_created, is_done, name}}.
type Todo struct {
	ID          string    `jsonapi:"primary,todos"`
	Name        string    `jsonapi:"attr,name"`
	IsDone      bool      `jsonapi:"attr,is_done"`
	DateCreated time.Time `jsonapi:"attr,date_created,iso8601,omitempty"`
}

// NewID returns a fresh lower-cased ULID.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// NewUniqueID returns a fresh id for which taken reports false.
func NewUniqueID(taken func(id string) bool) string {
	for {
		id := NewID()
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// IDs returns the id of every todo in order.
func IDs(todos []Todo) []string {
	ids := make([]string, len(todos))
	for i, t := range todos {
		ids[i] = t.ID
	}
	return ids
}

// Contains reports whether any todo has the given id.
func Contains(todos []Todo, id string) bool {
	for _, t := range todos {
		if t.ID == id {
			return true
		}
	}
	return false
}
