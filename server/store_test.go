package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/todospa/todo"
)

func storeContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("create and list in id order", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		first, second := todo.NewID(), todo.NewID()

		_, err := s.Create(ctx, todo.Todo{ID: first, Name: "milk"})
		require.NoError(t, err)
		_, err = s.Create(ctx, todo.Todo{ID: second, Name: "eggs", IsDone: true})
		require.NoError(t, err)

		todos, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{first, second}, todo.IDs(todos))
		assert.True(t, todos[1].IsDone)
	})

	t.Run("stamps creation date", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		fixed := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)

		a, err := s.Create(ctx, todo.Todo{ID: "a"})
		require.NoError(t, err)
		assert.False(t, a.DateCreated.IsZero())

		b, err := s.Create(ctx, todo.Todo{ID: "b", DateCreated: fixed})
		require.NoError(t, err)
		assert.True(t, b.DateCreated.Equal(fixed))

		got, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.True(t, got.DateCreated.Equal(fixed))
	})

	t.Run("rejects empty and duplicate ids", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, todo.Todo{})
		assert.ErrorIs(t, err, ErrNoID)

		_, err = s.Create(ctx, todo.Todo{ID: "x", Name: "one"})
		require.NoError(t, err)
		_, err = s.Create(ctx, todo.Todo{ID: "x", Name: "two"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, err := s.Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "one", got.Name)
	})

	t.Run("missing id", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("users are unique by email and username", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		u, err := NewUser("Ada@Example.com", "ada", "pw", bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, s.CreateUser(ctx, u))

		byEmail, err := s.UserByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.True(t, byEmail.CheckPassword("pw"))

		byName, err := s.UserByUsername(ctx, "ada")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)

		dup, err := NewUser("ADA@example.com", "other", "pw", bcrypt.MinCost)
		require.NoError(t, err)
		assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrEmailTaken)

		dup, err = NewUser("other@example.com", "ada", "pw", bcrypt.MinCost)
		require.NoError(t, err)
		assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrUsernameTaken)

		_, err = s.UserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		u, err := NewUser("ada@example.com", "ada", "pw", bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, s.CreateUser(ctx, u))

		sess, err := s.CreateSession(ctx, u.ID, true)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
		assert.True(t, sess.API)

		got, err := s.SessionUser(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada", got.Username)

		require.NoError(t, s.DeleteSession(ctx, sess.ID))
		_, err = s.SessionUser(ctx, sess.ID)
		assert.ErrorIs(t, err, ErrNoSession)

		_, err = s.CreateSession(ctx, "no-such-user", false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		s := open(t)
		todos, err := s.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, todos)
		assert.Empty(t, todos)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestBoltStore(t *testing.T) {
	t.Parallel()
	storeContract(t, func(t *testing.T) Store {
		s, err := OpenBoltStore(filepath.Join(t.TempDir(), "todos.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBoltStorePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "todos.db")
	ctx := context.Background()

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, todo.Todo{ID: "keep", Name: "persisted"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

func TestBoltStorePersistsSessions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "todos.db")
	ctx := context.Background()

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	u, err := NewUser("ada@example.com", "ada", "pw", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, u))
	sess, err := s.CreateSession(ctx, u.ID, false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.SessionUser(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.DateCreated.Equal(u.DateCreated))
}

func TestOpenStore(t *testing.T) {
	t.Parallel()
	s, err := OpenStore(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = OpenStore(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.IsType(t, &BoltStore{}, s)
}
