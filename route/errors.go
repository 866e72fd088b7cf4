package route

import "errors"

var (
	ErrEmptyRoute      = errors.New("route is empty")
	ErrUnknownRoute    = errors.New("no pattern registered for route")
	ErrMissingParam    = errors.New("route segment is missing a path parameter")
	ErrInvalidParam    = errors.New("route parameter cannot be rendered in a path")
	ErrInvalidPattern  = errors.New("invalid route pattern")
	ErrPatternShadowed = errors.New("route pattern shadowed by an earlier registration")
	ErrPatternConflict = errors.New("route pattern conflicts with an earlier registration")
	ErrDuplicateKind   = errors.New("route kind chain registered twice")
	ErrCatchAllNotLast = errors.New("catch-all parameter must be the last pattern element")
)
