package emhttp

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/nasstate/internal/state"
)

// ParseBool accepts the spellings used across emhttp and flash config files.
// The second result is false when s is not a recognized boolean.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on", "enabled", "enable":
		return true, true
	case "no", "false", "0", "off", "disabled", "disable", "":
		return false, true
	}
	return false, false
}

func boolField(s state.Slice, key string) bool {
	v, _ := ParseBool(s.String(key))
	return v
}

func intField(s state.Slice, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s.String(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SplitList splits a comma list, dropping blanks. The result is never nil.
func SplitList(s string) []string {
	out := []string{}
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sections returns every nested section sorted by name.
func sections(s state.Slice) []namedSection {
	names := s.Sections()
	slices.Sort(names)
	out := make([]namedSection, 0, len(names))
	for _, n := range names {
		sec, _ := s.Section(n)
		out = append(out, namedSection{name: n, body: sec})
	}
	return out
}

type namedSection struct {
	name string
	body state.Slice
}

func byIdx[T any](items []T, idx func(T) int64) {
	slices.SortStableFunc(items, func(a, b T) int { return cmp.Compare(idx(a), idx(b)) })
}
