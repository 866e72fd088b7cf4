package store

import (
	"maps"
)

// Merge folds patch into s and returns the new state. s itself is never
// modified: Extra and nested maps are copied when touched, everything else
// is shared. Keys that do not exist yet are introduced. A value of the
// wrong type for a typed field leaves that field unchanged.
func Merge(s State, patch Patch) State {
	fields := patch.Resolve(s)
	if len(fields) == 0 {
		return s
	}

	next := s
	extraCopied := false
	for key, val := range fields {
		if f, ok := typedFields[key]; ok {
			f.set(&next, val.resolve(f.get(next)))
			continue
		}
		if !extraCopied {
			next.Extra = make(map[string]any, len(s.Extra)+len(fields))
			maps.Copy(next.Extra, s.Extra)
			extraCopied = true
		}
		next.Extra[key] = val.resolve(next.Extra[key])
	}
	return next
}

func mergeMap(m map[string]any, fields Fields) map[string]any {
	out := make(map[string]any, len(m)+len(fields))
	maps.Copy(out, m)
	for key, val := range fields {
		out[key] = val.resolve(out[key])
	}
	return out
}
