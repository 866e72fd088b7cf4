package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonapi"
	bolt "go.etcd.io/bbolt"

	"github.com/GoCodeAlone/todospa/todo"
)

// Store persists todos and accounts.
type Store interface {
	Accounts

	List(ctx context.Context) ([]todo.Todo, error)
	Get(ctx context.Context, id string) (todo.Todo, error)
	// Create stores t. It fails with ErrNoID for an empty id and with
	// ErrAlreadyExists for a taken one. A zero DateCreated is set to now.
	Create(ctx context.Context, t todo.Todo) (todo.Todo, error)
	Close() error
}

func stamp(t todo.Todo) todo.Todo {
	if t.DateCreated.IsZero() {
		t.DateCreated = time.Now().UTC().Truncate(time.Second)
	}
	return t
}

// Accounts persists users and their sessions.
type Accounts interface {
	// CreateUser stores u. It fails with ErrEmailTaken or ErrUsernameTaken
	// when another user has the same email or username.
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	CreateSession(ctx context.Context, userID string, api bool) (Session, error)
	// SessionUser returns the user signed in with the session and records
	// the time the session was last seen.
	SessionUser(ctx context.Context, sessionID string) (User, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryStore keeps todos in insertion order in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	todos []todo.Todo

	users      map[string]User
	byEmail    map[string]string
	byUsername map[string]string
	sessions   map[string]Session
}

// NewMemoryStore returns a store seeded with todos.
func NewMemoryStore(todos ...todo.Todo) *MemoryStore {
	return &MemoryStore{
		todos:      append([]todo.Todo(nil), todos...),
		users:      map[string]User{},
		byEmail:    map[string]string{},
		byUsername: map[string]string{},
		sessions:   map[string]Session{},
	}
}

func (m *MemoryStore) List(context.Context) ([]todo.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]todo.Todo{}, m.todos...), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (todo.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.todos {
		if t.ID == id {
			return t, nil
		}
	}
	return todo.Todo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *MemoryStore) Create(_ context.Context, t todo.Todo) (todo.Todo, error) {
	if t.ID == "" {
		return todo.Todo{}, ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if todo.Contains(m.todos, t.ID) {
		return todo.Todo{}, fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	t = stamp(t)
	m.todos = append(m.todos, t)
	return t, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u User) error {
	if u.ID == "" {
		return ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, u.ID)
	}
	if _, ok := m.byEmail[emailKey(u.Email)]; ok {
		return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
	}
	if _, ok := m.byUsername[u.Username]; ok {
		return fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
	}
	m.users[u.ID] = u
	m.byEmail[emailKey(u.Email)] = u.ID
	m.byUsername[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userByIndex(m.byEmail, emailKey(email))
}

func (m *MemoryStore) UserByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userByIndex(m.byUsername, username)
}

func (m *MemoryStore) userByIndex(index map[string]string, key string) (User, error) {
	u, ok := m.users[index[key]]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, key)
	}
	return u, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, userID string, api bool) (Session, error) {
	sess, err := newSession(userID, api)
	if err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return Session{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *MemoryStore) SessionUser(_ context.Context, sessionID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return User{}, ErrNoSession
	}
	u, ok := m.users[sess.UserID]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, sess.UserID)
	}
	sess.LastSeenTime = time.Now().UTC().Truncate(time.Second)
	m.sessions[sessionID] = sess
	return u, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Buckets of the bolt database. Documents are JSON:API resources keyed by
// id; the user_email and user_username buckets index user ids.
var (
	todoBucket         = []byte("todo_bucket")
	userBucket         = []byte("user_bucket")
	userEmailBucket    = []byte("user_email_bucket")
	userUsernameBucket = []byte("user_username_bucket")
	sessionBucket      = []byte("session_bucket")

	buckets = [][]byte{todoBucket, userBucket, userEmailBucket, userUsernameBucket, sessionBucket}
)

// BoltStore keeps todos in a bbolt database. Ids are ULIDs, so key order
// is creation order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) List(context.Context) ([]todo.Todo, error) {
	todos := []todo.Todo{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(todoBucket).ForEach(func(k, v []byte) error {
			t, err := decodeTodo(v)
			if err != nil {
				return fmt.Errorf("decode todo %s: %w", k, err)
			}
			todos = append(todos, t)
			return nil
		})
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return todos, nil
}

func (b *BoltStore) Get(_ context.Context, id string) (todo.Todo, error) {
	var t todo.Todo
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(todoBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		t, err = decodeTodo(v)
		return err
	})
	return t, b.wrap(err)
}

func (b *BoltStore) Create(_ context.Context, t todo.Todo) (todo.Todo, error) {
	if t.ID == "" {
		return todo.Todo{}, ErrNoID
	}
	t = stamp(t)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(todoBucket)
		if bucket.Get([]byte(t.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
		}
		return putDoc(bucket, t.ID, &t)
	})
	if err != nil {
		return todo.Todo{}, b.wrap(err)
	}
	return t, nil
}

func (b *BoltStore) CreateUser(_ context.Context, u User) error {
	if u.ID == "" {
		return ErrNoID
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(userBucket)
		emails := tx.Bucket(userEmailBucket)
		names := tx.Bucket(userUsernameBucket)
		switch {
		case users.Get([]byte(u.ID)) != nil:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, u.ID)
		case emails.Get([]byte(emailKey(u.Email))) != nil:
			return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
		case names.Get([]byte(u.Username)) != nil:
			return fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
		}
		if err := putDoc(users, u.ID, &u); err != nil {
			return err
		}
		if err := emails.Put([]byte(emailKey(u.Email)), []byte(u.ID)); err != nil {
			return err
		}
		return names.Put([]byte(u.Username), []byte(u.ID))
	})
	return b.wrap(err)
}

func (b *BoltStore) UserByEmail(_ context.Context, email string) (User, error) {
	return b.userByIndex(userEmailBucket, emailKey(email))
}

func (b *BoltStore) UserByUsername(_ context.Context, username string) (User, error) {
	return b.userByIndex(userUsernameBucket, username)
}

func (b *BoltStore) userByIndex(index []byte, key string) (User, error) {
	var u User
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(index).Get([]byte(key))
		if id == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, key)
		}
		return getDoc(tx.Bucket(userBucket), string(id), &u)
	})
	return u, b.wrap(err)
}

func (b *BoltStore) CreateSession(_ context.Context, userID string, api bool) (Session, error) {
	sess, err := newSession(userID, api)
	if err != nil {
		return Session{}, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(userBucket).Get([]byte(userID)) == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return putDoc(tx.Bucket(sessionBucket), sess.ID, &sess)
	})
	if err != nil {
		return Session{}, b.wrap(err)
	}
	return sess, nil
}

func (b *BoltStore) SessionUser(_ context.Context, sessionID string) (User, error) {
	var u User
	err := b.db.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(sessionBucket)
		var sess Session
		if err := getDoc(sessions, sessionID, &sess); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNoSession
			}
			return err
		}
		if err := getDoc(tx.Bucket(userBucket), sess.UserID, &u); err != nil {
			return err
		}
		sess.LastSeenTime = time.Now().UTC().Truncate(time.Second)
		return putDoc(sessions, sess.ID, &sess)
	})
	return u, b.wrap(err)
}

func (b *BoltStore) DeleteSession(_ context.Context, sessionID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(sessionID))
	})
	return b.wrap(err)
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) wrap(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", ErrStoreClosed, err)
	}
	return err
}

func putDoc(bucket *bolt.Bucket, id string, doc any) error {
	var buf bytes.Buffer
	if err := jsonapi.MarshalPayload(&buf, doc); err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return bucket.Put([]byte(id), buf.Bytes())
}

func getDoc(bucket *bolt.Bucket, id string, doc any) error {
	v := bucket.Get([]byte(id))
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := jsonapi.UnmarshalPayload(bytes.NewReader(v), doc); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	return nil
}

func decodeTodo(v []byte) (todo.Todo, error) {
	var t todo.Todo
	err := jsonapi.UnmarshalPayload(bytes.NewReader(v), &t)
	return t, err
}
