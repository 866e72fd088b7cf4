package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

// Paths of the account pages and the API login endpoint.
const (
	PathLogin    = "/login"
	PathSignup   = "/signup"
	PathLogout   = "/logout"
	PathAPILogin = "/api/v1/login"
)

// SessionCookie is the name of the cookie carrying the session id of a
// browser login.
const SessionCookie = "todospa_session"

const (
	sessionIDValue = "session_id"
	sessionMaxAge  = 30 * 24 * 60 * 60
)

type contextKey int

const userKey contextKey = iota

// UserFrom returns the user signed in for the request, if any.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

var accountPages = template.Must(template.New("account").Parse(`
{{define "head"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - {{.SiteName}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Flashes}}<p class="flash">{{.}}</p>
{{end}}{{end}}

{{define "login"}}{{template "head" .}}<form method="post" action="/login">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<label>Email <input type="email" name="email" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Log in</button>
</form>
<p><a href="/signup">Sign up</a></p>
</body>
</html>
{{end}}

{{define "signup"}}{{template "head" .}}<form method="post" action="/signup">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<label>Email <input type="email" name="email" required></label>
<label>Username <input type="text" name="username" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign up</button>
</form>
<p><a href="/login">Log in</a></p>
</body>
</html>
{{end}}
`))

func newCookieStore(cfg Config) (*sessions.CookieStore, error) {
	key := []byte(cfg.SessionKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return cs, nil
}

// loadUser attaches the signed-in user to the request context. The session
// id is read from an Authorization bearer token or from the session cookie.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := bearerToken(r)
		if id == "" {
			cookie, _ := s.cookies.Get(r, SessionCookie)
			id, _ = cookie.Values[sessionIDValue].(string)
		}
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, err := s.store.SessionUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				s.logger.Debug("Ignoring unknown session", "path", r.URL.Path)
			} else {
				s.logger.Error("Failed to load session user", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// requireUser sends visitors without a session to the login page.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			s.flash(w, r, "You need to login to view that page!")
			http.Redirect(w, r, PathLogin, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIUser rejects API requests without a session.
func (s *Server) requireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized - you need to log in", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate checks an email and password pair. A missing user costs as
// much as a wrong password.
func (s *Server) authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return User{}, ErrInvalidEmail
	}
	if strings.TrimSpace(password) == "" {
		return User{}, ErrNoPassword
	}
	u, err := s.store.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		(&User{}).CheckPassword(password)
		return User{}, ErrUnknownUser
	case err != nil:
		return User{}, err
	}
	if !u.CheckPassword(password) {
		return User{}, ErrWrongPassword
	}
	return u, nil
}

type accountPage struct {
	Title     string
	SiteName  string
	CSRFToken string
	Flashes   []string
}

func (s *Server) renderAccountPage(w http.ResponseWriter, r *http.Request, name, title string) {
	p := accountPage{Title: title, SiteName: s.cfg.SiteName, CSRFToken: s.token}
	if cookie, err := s.cookies.Get(r, SessionCookie); err == nil {
		for _, f := range cookie.Flashes() {
			if msg, ok := f.(string); ok {
				p.Flashes = append(p.Flashes, msg)
			}
		}
		if len(p.Flashes) > 0 {
			if err := cookie.Save(r, w); err != nil {
				s.logger.Error("Failed to clear flashes", "error", err)
			}
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := accountPages.ExecuteTemplate(w, name, p); err != nil {
		s.logger.Error("Failed to render page", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) serveLogin(w http.ResponseWriter, r *http.Request) {
	s.renderAccountPage(w, r, "login", "Log in")
}

func (s *Server) serveSignup(w http.ResponseWriter, r *http.Request) {
	s.renderAccountPage(w, r, "signup", "Sign up")
}

func (s *Server) postLogin(w http.ResponseWriter, r *http.Request) {
	u, err := s.authenticate(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		s.logger.Info("Rejected login", "reason", err)
		s.flash(w, r, loginMessage(err))
		http.Redirect(w, r, PathLogin, http.StatusFound)
		return
	}
	s.startBrowserSession(w, r, u)
}

func (s *Server) postSignup(w http.ResponseWriter, r *http.Request) {
	u, err := NewUser(r.PostFormValue("email"), r.PostFormValue("username"), r.PostFormValue("password"), s.cfg.PasswordCost)
	if err == nil {
		err = s.store.CreateUser(r.Context(), u)
	}
	if err != nil {
		msg, ok := signupMessage(err)
		if !ok {
			s.internalError(w, r, err)
			return
		}
		s.logger.Info("Rejected signup", "reason", err)
		s.flash(w, r, msg)
		http.Redirect(w, r, PathSignup, http.StatusFound)
		return
	}
	s.logger.Info("Created user", "id", u.ID, "username", u.Username)
	s.startBrowserSession(w, r, u)
}

func (s *Server) startBrowserSession(w http.ResponseWriter, r *http.Request, u User) {
	sess, err := s.store.CreateSession(r.Context(), u.ID, false)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	cookie, _ := s.cookies.Get(r, SessionCookie)
	cookie.Values[sessionIDValue] = sess.ID
	if err := cookie.Save(r, w); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("User logged in", "user", u.ID)
	http.Redirect(w, r, PathHome, http.StatusFound)
}

func (s *Server) postLogout(w http.ResponseWriter, r *http.Request) {
	cookie, _ := s.cookies.Get(r, SessionCookie)
	if id, ok := cookie.Values[sessionIDValue].(string); ok {
		if err := s.store.DeleteSession(r.Context(), id); err != nil {
			s.logger.Error("Failed to delete session", "error", err)
		}
	}
	delete(cookie.Values, sessionIDValue)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		s.logger.Error("Failed to clear session cookie", "error", err)
	}
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

// flash queues a message for the next account page.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	cookie, _ := s.cookies.Get(r, SessionCookie)
	cookie.AddFlash(msg)
	if err := cookie.Save(r, w); err != nil {
		s.logger.Error("Failed to save flash", "error", err)
	}
}

func loginMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return "That's not a valid email."
	case errors.Is(err, ErrNoPassword):
		return "You need to provide a password."
	default:
		return "Your email or password were incorrect."
	}
}

func signupMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return "That's not a valid email.", true
	case errors.Is(err, ErrNoPassword):
		return "You need to provide a password!", true
	case errors.Is(err, ErrNoUsername):
		return "You need to provide a username!", true
	case errors.Is(err, ErrUsernameTooShort):
		return fmt.Sprintf("A username needs to be at least %d characters long.", MinUsernameLength), true
	case errors.Is(err, ErrEmailTaken):
		return "That email is already taken!", true
	case errors.Is(err, ErrUsernameTaken):
		return "That username is already taken!", true
	}
	return "", false
}

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is the resource returned by a successful API login. ID is sent
// back as a bearer token.
type Token struct {
	ID       string `jsonapi:"primary,token"`
	Username string `jsonapi:"attr,username"`
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var in LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}

	u, err := s.authenticate(r.Context(), in.Email, in.Password)
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrNoPassword),
		errors.Is(err, ErrUnknownUser), errors.Is(err, ErrWrongPassword):
		s.logger.Info("Rejected API login", "reason", err)
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	sess, err := s.store.CreateSession(r.Context(), u.ID, true)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("User logged in", "user", u.ID, "api", true)
	s.writePayload(w, http.StatusCreated, &Token{ID: sess.ID, Username: u.Username})
}
