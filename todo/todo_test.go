package todo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	a, b := NewID(), NewID()
	assert.Len(t, a, 26)
	assert.Equal(t, strings.ToLower(a), a)
	assert.NotEqual(t, a, b)
}

func TestNewUniqueIDSkipsTaken(t *testing.T) {
	t.Parallel()

	calls := 0
	id := NewUniqueID(func(string) bool {
		calls++
		return calls < 3
	})
	assert.Equal(t, 3, calls)
	assert.NotEmpty(t, id)
}

func TestContainsAndIDs(t *testing.T) {
	t.Parallel()

	todos := []Todo{{ID: "a"}, {ID: "b"}}
	assert.True(t, Contains(todos, "b"))
	assert.False(t, Contains(todos, "c"))
	assert.Equal(t, []string{"a", "b"}, IDs(todos))
}
