package ini

import (
	"strings"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

const arraySuffix = "[]"

// Decode parses text into a slice, skipping malformed lines.
func Decode(text string) state.Slice {
	s, _ := DecodeReport(text)
	return s
}

// DecodeReport parses text like Decode and additionally reports skipped lines.
// The returned slice is always usable; the error, when non-nil, is a ParseError
// listing the 1-based numbers of the lines that were ignored.
func DecodeReport(text string) (state.Slice, error) {
	out := state.Slice{}
	cur := out
	var skipped []int

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}

		if line[0] == '[' {
			sec, ok := openSection(out, line)
			if !ok {
				skipped = append(skipped, i+1)
				// Keys that follow a broken header must not leak into the previous section.
				cur = nil
				continue
			}
			cur = sec
			continue
		}

		if cur == nil {
			skipped = append(skipped, i+1)
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			// A bare "key[]" declares an empty list.
			if name, isArray := strings.CutSuffix(line, arraySuffix); isArray && declareList(cur, strings.TrimSpace(name)) {
				continue
			}
			skipped = append(skipped, i+1)
			continue
		}
		if eq == 0 {
			skipped = append(skipped, i+1)
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))

		if name, isArray := strings.CutSuffix(key, arraySuffix); isArray && name != "" {
			list, _ := cur[name].([]string)
			cur[name] = append(list, val)
			continue
		}
		if key == "" {
			skipped = append(skipped, i+1)
			continue
		}
		if _, isSection := cur[key].(state.Slice); isSection {
			skipped = append(skipped, i+1)
			continue
		}
		cur[key] = val
	}

	if len(skipped) > 0 {
		return out, ferrors.ParseError("malformed lines skipped").
			WithContext("lines", skipped).
			Build()
	}
	return out, nil
}

func declareList(cur state.Slice, name string) bool {
	if name == "" {
		return false
	}
	switch cur[name].(type) {
	case nil:
		cur[name] = []string{}
		return true
	case []string:
		return true
	}
	return false
}

// openSection resolves a header line to its section, creating parents as needed.
// Quoted names are literal; unquoted names containing dots address nested sections.
func openSection(root state.Slice, line string) (state.Slice, bool) {
	if !strings.HasSuffix(line, "]") || len(line) < 3 {
		return nil, false
	}
	inner := strings.TrimSpace(line[1 : len(line)-1])
	if inner == "" {
		return nil, false
	}

	var path []string
	if isQuoted(inner) {
		path = []string{inner[1 : len(inner)-1]}
	} else {
		path = strings.Split(inner, ".")
	}

	cur := root
	for _, name := range path {
		if name == "" {
			return nil, false
		}
		switch existing := cur[name].(type) {
		case state.Slice:
			cur = existing
		case nil:
			sec := state.Slice{}
			cur[name] = sec
			cur = sec
		default:
			return nil, false
		}
	}
	return cur, true
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return (first == '"' || first == '\'') && first == last
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
