// Package route models where in the application the user is: an ordered
// sequence of segments, the mapping between segment sequences and URL paths,
// and the arrivals and departures between two routes.
package route

import (
	"maps"
	"slices"
	"strings"
)

// Kind identifies one routable location, e.g. "Home" or "Card".
type Kind string

// NotFound is the kind an unmatched path resolves to when no catch-all
// pattern has been registered.
const NotFound Kind = "NotFound"

// Segment is one node of a route: a kind plus its path parameters.
// Params is nil when the segment carries no parameters.
type Segment struct {
	Kind   Kind              `json:"id"`
	Params map[string]string `json:"params,omitempty"`
}

// NewSegment builds a segment from alternating parameter names and values.
// A trailing name without a value is ignored.
func NewSegment(kind Kind, kv ...string) Segment {
	seg := Segment{Kind: kind}
	if len(kv) < 2 {
		return seg
	}
	seg.Params = make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		seg.Params[kv[i]] = kv[i+1]
	}
	return seg
}

// Param returns the named parameter, or "" if absent.
func (s Segment) Param(name string) string {
	return s.Params[name]
}

// Equal reports whether two segments have the same kind and parameters.
func (s Segment) Equal(o Segment) bool {
	return s.Kind == o.Kind && maps.Equal(s.Params, o.Params)
}

func (s Segment) String() string {
	if len(s.Params) == 0 {
		return string(s.Kind)
	}
	keys := slices.Sorted(maps.Keys(s.Params))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Params[k])
	}
	return string(s.Kind) + "{" + strings.Join(parts, ",") + "}"
}

// Route is an ordered sequence of segments, outermost first.
type Route []Segment

// Of is shorthand for building a route from segments.
func Of(segments ...Segment) Route {
	return Route(segments)
}

// Local returns the last, most specific segment. The zero Segment is
// returned for an empty route.
func (r Route) Local() Segment {
	if len(r) == 0 {
		return Segment{}
	}
	return r[len(r)-1]
}

// Kinds returns the kind of every segment in order.
func (r Route) Kinds() []Kind {
	kinds := make([]Kind, len(r))
	for i, s := range r {
		kinds[i] = s.Kind
	}
	return kinds
}

// Has reports whether any segment, at any depth, is of the given kind.
func (r Route) Has(kind Kind) bool {
	return slices.ContainsFunc(r, func(s Segment) bool { return s.Kind == kind })
}

// Equal reports whether two routes have equal segments in the same order.
func (r Route) Equal(o Route) bool {
	return slices.EqualFunc(r, o, Segment.Equal)
}

func (r Route) String() string {
	parts := make([]string, len(r))
	for i, s := range r {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
