package state

import (
	"maps"
	"slices"
)

// Slice is the decoded content of one state file. Values are string,
// []string or a nested Slice (an INI section).
//
// A Slice handed to the store is cloned, and a Slice read back from a
// Snapshot must be treated as read-only.
type Slice map[string]any

// Section returns the nested section named name, if present.
func (s Slice) Section(name string) (Slice, bool) {
	v, ok := s[name]
	if !ok {
		return nil, false
	}
	sec, ok := v.(Slice)
	return sec, ok
}

// String returns the scalar value for key, or "".
func (s Slice) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Sections returns the names of every nested section.
func (s Slice) Sections() []string {
	var names []string
	for k, v := range s {
		if _, ok := v.(Slice); ok {
			names = append(names, k)
		}
	}
	return names
}

// Clone returns a deep copy. Values of types other than Slice, map[string]any
// and []string are copied by assignment.
func (s Slice) Clone() Slice {
	if s == nil {
		return Slice{}
	}
	out := make(Slice, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Slice:
		return t.Clone()
	case map[string]any:
		return Slice(t).Clone()
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Keys returns the top-level keys of s in no particular order.
func (s Slice) Keys() []string {
	return slices.Collect(maps.Keys(s))
}
