package route

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Config registers one segment kind with its path pattern. Patterns are
// static ("/card"), parameterized ("/:id") or catch-all ("/:404..."), and
// may combine several elements ("/card/:id"). Children nest inside their
// parent: their full pattern is the parent's followed by their own, and a
// path matching it resolves to the parent segment followed by the child.
type Config struct {
	Kind     Kind
	Pattern  string
	Children []Config
}

type token struct {
	static   string
	param    string
	catchAll bool
}

type part struct {
	kind   Kind
	tokens []token
}

type entry struct {
	pattern string // chi pattern
	source  string // pattern as registered
	parts   []part
}

// Router maps between routes and URL paths. Matching is delegated to a chi
// routing tree, which prefers static elements over parameters and
// parameters over catch-alls.
type Router struct {
	mu        sync.RWMutex
	mux       *chi.Mux
	byPattern map[string]*entry
	byShape   map[string]*entry
	byChain   map[string]*entry
	order     []*entry
}

// New returns an empty router.
func New() *Router {
	return &Router{
		mux:       chi.NewRouter(),
		byPattern: make(map[string]*entry),
		byShape:   make(map[string]*entry),
		byChain:   make(map[string]*entry),
	}
}

// NewRouter builds a router from configs, failing on the first registration
// error.
func NewRouter(configs ...Config) (*Router, error) {
	r := New()
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a kind, and its children, to the router. If a pattern
// matches exactly the same paths as an earlier one, the earlier registration
// stays in effect and ErrPatternShadowed is returned.
func (r *Router) Register(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(nil, cfg)
}

func (r *Router) register(parents []part, cfg Config) error {
	if cfg.Kind == "" {
		return fmt.Errorf("%w: empty kind for pattern %q", ErrInvalidPattern, cfg.Pattern)
	}
	tokens, err := parsePattern(cfg.Pattern)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Kind, err)
	}
	parts := append(slices.Clone(parents), part{kind: cfg.Kind, tokens: tokens})
	if err := r.add(parts); err != nil {
		return err
	}
	for _, child := range cfg.Children {
		if err := r.register(parts, child); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) add(parts []part) error {
	var chiPattern, shape, source strings.Builder
	kinds := make([]Kind, len(parts))
	for i, pt := range parts {
		kinds[i] = pt.kind
		for j, tk := range pt.tokens {
			switch {
			case tk.catchAll:
				if i != len(parts)-1 || j != len(pt.tokens)-1 {
					return fmt.Errorf("%s: %w", pt.kind, ErrCatchAllNotLast)
				}
				chiPattern.WriteString("/*")
				shape.WriteString("/*")
				source.WriteString("/:" + tk.param + "...")
			case tk.param != "":
				chiPattern.WriteString("/{" + tk.param + "}")
				shape.WriteString("/{}")
				source.WriteString("/:" + tk.param)
			default:
				chiPattern.WriteString("/" + tk.static)
				shape.WriteString("/" + tk.static)
				source.WriteString("/" + tk.static)
			}
		}
	}

	e := &entry{
		pattern: orRoot(chiPattern.String()),
		source:  orRoot(source.String()),
		parts:   parts,
	}
	key := chainKey(kinds)
	if _, ok := r.byChain[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, key)
	}
	if prev, ok := r.byShape[orRoot(shape.String())]; ok {
		return fmt.Errorf("%w: %q by %q", ErrPatternShadowed, e.source, prev.source)
	}
	if err := r.handle(e.pattern); err != nil {
		return err
	}

	r.byChain[key] = e
	r.byShape[orRoot(shape.String())] = e
	r.byPattern[e.pattern] = e
	r.order = append(r.order, e)
	return nil
}

// handle registers a pattern with chi, which panics on conflicting routes.
func (r *Router) handle(pattern string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %q: %v", ErrPatternConflict, pattern, p)
		}
	}()
	r.mux.Get(pattern, func(http.ResponseWriter, *http.Request) {})
	return nil
}

// ToPath renders a route as a URL path. Parameter values are path-escaped.
// The dot segments "." and ".." are rejected, since canonicalization would
// collapse them and the path would no longer resolve to rt.
func (r *Router) ToPath(rt Route) (string, error) {
	if len(rt) == 0 {
		return "", ErrEmptyRoute
	}
	r.mu.RLock()
	e, ok := r.byChain[chainKey(rt.Kinds())]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, rt)
	}

	var b strings.Builder
	for i, pt := range e.parts {
		seg := rt[i]
		for _, tk := range pt.tokens {
			switch {
			case tk.catchAll:
				for _, piece := range strings.Split(seg.Params[tk.param], "/") {
					if isDotSegment(piece) {
						return "", fmt.Errorf("%w: %s has %q in %q", ErrInvalidParam, seg.Kind, piece, tk.param)
					}
					if piece != "" {
						b.WriteString("/" + url.PathEscape(piece))
					}
				}
			case tk.param != "":
				v := seg.Params[tk.param]
				if v == "" {
					return "", fmt.Errorf("%w: %s needs %q", ErrMissingParam, seg.Kind, tk.param)
				}
				if isDotSegment(v) {
					return "", fmt.Errorf("%w: %s has %q in %q", ErrInvalidParam, seg.Kind, v, tk.param)
				}
				b.WriteString("/" + url.PathEscape(v))
			default:
				b.WriteString("/" + tk.static)
			}
		}
	}
	return orRoot(b.String()), nil
}

func isDotSegment(s string) bool {
	return s == "." || s == ".."
}

// FromPath resolves a URL path to a route. The path is canonicalized first.
// A path no pattern matches resolves to a single NotFound segment.
func (r *Router) FromPath(p string) Route {
	p = Canonical(p)

	rctx := chi.NewRouteContext()
	r.mu.RLock()
	matched := r.mux.Match(rctx, http.MethodGet, p)
	var e *entry
	if matched && len(rctx.RoutePatterns) > 0 {
		e = r.byPattern[rctx.RoutePatterns[len(rctx.RoutePatterns)-1]]
	}
	r.mu.RUnlock()
	if e == nil {
		return Route{NewSegment(NotFound)}
	}

	rt := make(Route, 0, len(e.parts))
	for _, pt := range e.parts {
		seg := Segment{Kind: pt.kind}
		for _, tk := range pt.tokens {
			var raw string
			switch {
			case tk.catchAll:
				raw = rctx.URLParam("*")
			case tk.param != "":
				raw = rctx.URLParam(tk.param)
			default:
				continue
			}
			if raw == "" {
				continue
			}
			v, err := url.PathUnescape(raw)
			if err != nil {
				v = raw
			}
			if seg.Params == nil {
				seg.Params = make(map[string]string)
			}
			seg.Params[tk.param] = v
		}
		rt = append(rt, seg)
	}
	return rt
}

// Patterns returns every registered pattern, in registration order, in the
// syntax it was registered with.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	for i, e := range r.order {
		out[i] = e.source
	}
	return out
}

// Canonical normalizes a path: query and fragment are dropped, dot elements
// and duplicate slashes are cleaned, and a trailing slash is removed.
func Canonical(p string) string {
	p, _, _ = strings.Cut(p, "#")
	p, _, _ = strings.Cut(p, "?")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func parsePattern(pattern string) ([]token, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, pattern)
	}
	var tokens []token
	for _, piece := range strings.Split(pattern, "/") {
		if piece == "" {
			continue
		}
		if name, ok := strings.CutPrefix(piece, ":"); ok {
			name, catchAll := strings.CutSuffix(name, "...")
			if name == "" || strings.ContainsAny(name, "{}*:") {
				return nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidPattern, piece, pattern)
			}
			tokens = append(tokens, token{param: name, catchAll: catchAll})
			continue
		}
		if strings.ContainsAny(piece, "{}*") {
			return nil, fmt.Errorf("%w: bad element %q in %q", ErrInvalidPattern, piece, pattern)
		}
		tokens = append(tokens, token{static: piece})
	}
	return tokens, nil
}

func chainKey(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, "/")
}

func orRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
