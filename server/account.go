package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/todospa/todo"
)

// DefaultPasswordCost is the bcrypt work factor for new passwords.
const DefaultPasswordCost = 12

// MinUsernameLength is the shortest accepted username.
const MinUsernameLength = 2

// User is an account that may sign in. PasswordHash is never sent to
// clients.
type User struct {
	ID           string    `jsonapi:"primary,users"`
	Username     string    `jsonapi:"attr,username"`
	Email        string    `jsonapi:"attr,email"`
	PasswordHash string    `jsonapi:"attr,password_hash"`
	DateCreated  time.Time `jsonapi:"attr,date_created,iso8601"`
}

// NewUser validates the sign-up fields and returns a user with a fresh id
// and a hashed password.
func NewUser(email, username, password string, cost int) (User, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	username = NormalizeUsername(username)
	if username == "" {
		return User{}, ErrNoUsername
	}
	if len(username) < MinUsernameLength {
		return User{}, fmt.Errorf("%w: %q", ErrUsernameTooShort, username)
	}
	u := User{
		ID:          todo.NewID(),
		Username:    username,
		Email:       email,
		DateCreated: time.Now().UTC().Truncate(time.Second),
	}
	if err := u.SetPassword(password, cost); err != nil {
		return User{}, err
	}
	return u, nil
}

// SetPassword stores the bcrypt hash of pass.
func (u *User) SetPassword(pass string, cost int) error {
	if strings.TrimSpace(pass) == "" {
		return ErrNoPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether pass matches the stored hash. It does the
// full comparison even for a user without a hash.
func (u *User) CheckPassword(pass string) bool {
	hash := u.PasswordHash
	if hash == "" {
		hash = dummyHash()
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil && u.PasswordHash != ""
}

// dummyHash keeps a failed lookup as slow as a failed password check.
var dummyHash = sync.OnceValue(func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("not a password"), DefaultPasswordCost)
	if err != nil {
		panic(err)
	}
	return string(h)
})

// ValidEmail reports whether s is a plausible email address.
func ValidEmail(s string) bool {
	return govalidator.IsEmail(s)
}

// NormalizeUsername lower-cases s and replaces spaces with underscores.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// Session ties a signed-in client to a user. ID is the secret the client
// presents, either in the session cookie or as a bearer token.
type Session struct {
	ID           string    `jsonapi:"primary,sessions"`
	UserID       string    `jsonapi:"attr,user_id"`
	API          bool      `jsonapi:"attr,api"`
	LoginTime    time.Time `jsonapi:"attr,login_time,iso8601"`
	LastSeenTime time.Time `jsonapi:"attr,last_seen_time,iso8601"`
}

func newSession(userID string, api bool) (Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	return Session{
		ID:           base64.RawURLEncoding.EncodeToString(b),
		UserID:       userID,
		API:          api,
		LoginTime:    now,
		LastSeenTime: now,
	}, nil
}
