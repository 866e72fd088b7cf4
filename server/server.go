package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/jsonapi"
	"github.com/gorilla/sessions"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/todo"
)

// HeaderCSRFToken is the request header checked on mutating API calls.
const HeaderCSRFToken = "X-CSRF-Token"

const (
	formMediaType = "application/x-www-form-urlencoded"
	formCSRFField = "csrf_token"
)

// Paths served by the handler.
const (
	PathHome  = "/c"
	PathCard  = "/card"
	PathTodos = "/api/v1/todos"
)

var page = template.Must(template.New("spa").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="csrf-token" content="{{.CSRFToken}}">
<meta name="current-user" content="{{.Username}}">
<title>{{.SiteName}}</title>
</head>
<body>
<div id="app"></div>
</body>
</html>
`))

// Server is the demo todo service.
type Server struct {
	cfg     Config
	store   Store
	logger  todospa.Logger
	token   string
	cookies *sessions.CookieStore
	router  chi.Router
}

// New validates cfg and builds the HTTP handler around store.
func New(cfg Config, store Store, logger todospa.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = todospa.NopLogger{}
	}
	token := cfg.CSRFToken
	if token == "" {
		var err error
		if token, err = newToken(); err != nil {
			return nil, err
		}
	}

	cookies, err := newCookieStore(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, store: store, logger: logger, token: token, cookies: cookies}
	s.routes()
	return s, nil
}

// Token is the CSRF token rendered into the page and required on
// mutating API requests.
func (s *Server) Token() string { return s.token }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.loadUser)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, PathHome, http.StatusFound)
	})
	r.Group(func(pages chi.Router) {
		pages.Use(s.requireUser)
		pages.Get(PathHome, s.serveSPA)
		pages.Get(PathCard, s.serveSPA)
	})

	r.Get(PathLogin, s.serveLogin)
	r.Get(PathSignup, s.serveSignup)
	r.Group(func(forms chi.Router) {
		forms.Use(s.requireCSRF)
		forms.Post(PathLogin, s.postLogin)
		forms.Post(PathSignup, s.postSignup)
		forms.Post(PathLogout, s.postLogout)
	})

	r.Route("/api", func(api chi.Router) {
		api.NotFound(s.apiNotFound)
		api.MethodNotAllowed(s.apiMethodNotAllowed)
		api.Route("/v1", func(v1 chi.Router) {
			v1.NotFound(s.apiNotFound)
			v1.MethodNotAllowed(s.apiMethodNotAllowed)
			v1.Post("/login", s.apiLogin)
			v1.Group(func(todos chi.Router) {
				todos.Use(s.requireJSONAPI)
				todos.Use(s.requireAPIUser)
				todos.Use(s.requireCSRF)
				todos.Get("/todos", s.listTodos)
				todos.Post("/todos", s.createTodo)
			})
		})
	})
	s.router = r
}

func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	u, _ := UserFrom(r.Context())
	err := page.Execute(w, struct{ CSRFToken, SiteName, Username string }{s.token, s.cfg.SiteName, u.Username})
	if err != nil {
		s.logger.Error("Failed to render page", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]*todo.Todo, len(todos))
	for i := range todos {
		out[i] = &todos[i]
	}
	s.writePayload(w, http.StatusOK, out)
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	in := new(todo.Todo)
	if err := jsonapi.UnmarshalPayload(r.Body, in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
			return
		}
		s.logger.Debug("Rejected todo document", "error", err)
		s.writeError(w, http.StatusBadRequest, "Invalid JSON:API document", err.Error())
		return
	}

	created, err := s.store.Create(r.Context(), *in)
	switch {
	case errors.Is(err, ErrNoID):
		s.writeError(w, http.StatusBadRequest, "No ID supplied", "")
		return
	case errors.Is(err, ErrAlreadyExists):
		s.writeError(w, http.StatusBadRequest, "An entity with that ID already exists", "")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("Created todo", "id", created.ID)
	s.writePayload(w, http.StatusCreated, &created)
}

// requireJSONAPI rejects request bodies of any other media type.
func (s *Server) requireJSONAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != jsonapi.MediaType || len(params) > 0 {
				s.writeError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type",
					"requests must use Content-Type "+jsonapi.MediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF rejects unsafe requests without the page's token, sent in
// the X-CSRF-Token header or, from the account forms, as csrf_token.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			got := r.Header.Get(HeaderCSRFToken)
			if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); got == "" && mt == formMediaType {
				got = r.PostFormValue(formCSRFField)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				s.logger.Warn("Rejected request with invalid CSRF token", "method", r.Method, "path", r.URL.Path)
				s.writeError(w, http.StatusForbidden, "Forbidden - CSRF token invalid", "")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) apiNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "No such endpoint", "")
}

func (s *Server) apiMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
}

// logRequests logs one line per completed request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.logger.Info(fmt.Sprintf("Completed %s %s: %d %s in %v", r.Method, r.URL.Path, status, http.StatusText(status), elapsed),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error", "")
}

func (s *Server) writePayload(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	if err := jsonapi.MarshalPayload(w, payload); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	err := jsonapi.MarshalErrors(w, []*jsonapi.ErrorObject{{
		Title:  title,
		Detail: detail,
		Status: strconv.Itoa(status),
	}})
	if err != nil {
		s.logger.Error("Failed to write error response", "error", err)
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
