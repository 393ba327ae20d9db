package ini

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

// Encode renders s deterministically: top-level scalars first, then sections,
// each group sorted by key. Nested sections are written with dotted headers.
// An empty list is written as a bare "key[]" line so it decodes back to an
// empty list rather than disappearing.
//
// Encode fails with a SerializationError for cyclic slices, values that have no
// text form (funcs, channels, structs), and keys or values that would break the
// line format.
func Encode(s state.Slice) (string, error) {
	e := &encoder{visiting: make(map[uintptr]bool)}
	if err := e.section(nil, s); err != nil {
		return "", err
	}
	return e.b.String(), nil
}

type encoder struct {
	b        strings.Builder
	visiting map[uintptr]bool
}

func (e *encoder) section(path []string, s map[string]any) error {
	ptr := reflect.ValueOf(s).Pointer()
	if e.visiting[ptr] {
		return ferrors.SerializationError("cyclic section").
			WithContext("section", strings.Join(path, ".")).
			Build()
	}
	e.visiting[ptr] = true
	defer delete(e.visiting, ptr)

	if len(path) > 0 {
		header, err := sectionHeader(path)
		if err != nil {
			return err
		}
		if e.b.Len() > 0 {
			e.b.WriteByte('\n')
		}
		e.b.WriteString(header)
		e.b.WriteByte('\n')
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sections []string
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return err
		}
		v := s[k]
		if _, ok := asSection(v); ok {
			sections = append(sections, k)
			continue
		}
		if err := e.entry(k, v); err != nil {
			return err
		}
	}

	for _, k := range sections {
		sub, _ := asSection(s[k])
		if err := e.section(append(slices.Clone(path), k), sub); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) entry(key string, v any) error {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return e.emptyList(key)
		}
		for _, item := range t {
			if err := e.line(key+arraySuffix, item); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(t) == 0 {
			return e.emptyList(key)
		}
		for _, item := range t {
			str, err := scalar(key, item)
			if err != nil {
				return err
			}
			if err := e.line(key+arraySuffix, str); err != nil {
				return err
			}
		}
		return nil
	}
	str, err := scalar(key, v)
	if err != nil {
		return err
	}
	return e.line(key, str)
}

func (e *encoder) emptyList(key string) error {
	e.b.WriteString(key)
	e.b.WriteString(arraySuffix)
	e.b.WriteByte('\n')
	return nil
}

func (e *encoder) line(key, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return ferrors.SerializationError("value contains a line break").
			WithContext("key", key).
			Build()
	}
	e.b.WriteString(key)
	e.b.WriteString(`="`)
	e.b.WriteString(value)
	e.b.WriteString("\"\n")
	return nil
}

func asSection(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case state.Slice:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// scalar renders the text form of v. Booleans and numbers become strings.
func scalar(key string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", ferrors.SerializationError("value is not serializable").
		WithContext("key", key).
		WithContext("type", fmt.Sprintf("%T", v)).
		Build()
}

func checkKey(k string) error {
	bad := k == "" ||
		k != strings.TrimSpace(k) ||
		strings.ContainsAny(k, "=\r\n") ||
		strings.HasSuffix(k, arraySuffix) ||
		k[0] == '[' || k[0] == ';' || k[0] == '#'
	if bad {
		return ferrors.SerializationError("key cannot be represented").
			WithContext("key", k).
			Build()
	}
	return nil
}

// sectionHeader quotes top-level names literally and joins nested paths with dots.
func sectionHeader(path []string) (string, error) {
	if len(path) == 1 {
		if strings.ContainsAny(path[0], "\r\n") {
			return "", ferrors.SerializationError("section name contains a line break").
				WithContext("section", path[0]).
				Build()
		}
		return `["` + path[0] + `"]`, nil
	}
	for _, seg := range path {
		if strings.ContainsAny(seg, ".[]\"' \t\r\n") {
			return "", ferrors.SerializationError("nested section name cannot be represented").
				WithContext("section", strings.Join(path, ".")).
				Build()
		}
	}
	return "[" + strings.Join(path, ".") + "]", nil
}
