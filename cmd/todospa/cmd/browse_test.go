package cmd

import (
	"bytes"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/todospa/server"
	"github.com/GoCodeAlone/todospa/todo"
)

// lockedBuffer is written by the renderer and the shell at once.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const (
	browseEmail    = "ada@example.com"
	browsePassword = "correct horse"
)

// startServer serves a memory store with one account and points the
// password variable at it.
func startServer(t *testing.T, seed ...todo.Todo) (*httptest.Server, *server.MemoryStore) {
	t.Helper()
	st := server.NewMemoryStore(seed...)
	u, err := server.NewUser(browseEmail, "ada", browsePassword, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(t.Context(), u))
	srv, err := server.New(server.Config{}, st, nil)
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	t.Setenv("TODOSPA_API_PASSWORD", browsePassword)
	return hs, st
}

func runBrowse(t *testing.T, url, input string) string {
	t.Helper()
	out := &lockedBuffer{}
	rootCmd := NewRootCommand()
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs([]string{"browse", "--base-url", url, "--start", "/c", "--email", browseEmail})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestBrowseNavigatesAndCreates(t *testing.T) {
	hs, st := startServer(t, todo.Todo{ID: "01a", Name: "milk"})

	out := runBrowse(t, hs.URL, "go /card\nadd bread\nstate\nquit\n")

	assert.Contains(t, out, "--- revision 0 ---")
	assert.Contains(t, out, "[Card] /card")
	assert.Contains(t, out, "milk")
	assert.Contains(t, out, "bread")
	assert.Contains(t, out, `"csrf_token": "[REDACTED]"`)
	assert.Contains(t, out, `"auth_token": "[REDACTED]"`)
	assert.Contains(t, out, `"user": "ada"`)

	todos, err := st.List(t.Context())
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "bread", todos[1].Name)
}

func TestBrowseUnknownCommandAndEOF(t *testing.T) {
	hs, _ := startServer(t)

	out := runBrowse(t, hs.URL, "frobnicate\ngo\nhelp\n")

	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "usage: go <path>")
	assert.Contains(t, out, "Commands:")
}

func TestBrowseEmptyName(t *testing.T) {
	hs, st := startServer(t)

	out := runBrowse(t, hs.URL, "add   \nquit\n")

	assert.Contains(t, out, "error:")
	todos, err := st.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestUserAdd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "todos.db")
	out := &bytes.Buffer{}
	rootCmd := NewRootCommand()
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader("s3cret\n"))
	rootCmd.SetArgs([]string{"user", "add", "--db", db, "--email", "grace@example.com", "--username", "Grace"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "created grace (grace@example.com)")

	st, err := server.OpenBoltStore(db)
	require.NoError(t, err)
	defer st.Close()
	u, err := st.UserByEmail(t.Context(), "grace@example.com")
	require.NoError(t, err)
	assert.True(t, u.CheckPassword("s3cret"))
}

func TestUserAddNeedsDatabase(t *testing.T) {
	rootCmd := NewRootCommand()
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader("pw\n"))
	rootCmd.SetArgs([]string{"user", "add", "--email", "grace@example.com", "--username", "grace"})
	assert.ErrorIs(t, rootCmd.Execute(), errNoDatabase)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "[REDACTED]", redact("secret"))
}
