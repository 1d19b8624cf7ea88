package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MustDate parses a YYYY-MM-DD literal in UTC and panics on malformed input.
// It is only used for static catalogues.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s'. must be YYYY-MM-DD", s)
	}
	return t, nil
}

// NormalizeName lowercases and trims an identifier such as an index or period name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
