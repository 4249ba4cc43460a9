// Package globset implements hashwatch.GlobSet using
// github.com/bmatcuk/doublestar/v4 for pattern matching, so a HashSpec can be
// scoped to a subset of a package's files (e.g. "only inputs relevant to
// this task") instead of every tracked file. It is the default GlobSet
// implementation: callers construct a *Set via New and pass it as
// HashSpec.Inputs, and a HashFacility such as gitscm.Facility narrows its
// walk by type-asserting for the Match method.
package globset

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is an ordered, deduplicated collection of doublestar glob patterns.
// The zero value is not valid; use New.
type Set struct {
	patterns []string
	key      string
}

// New builds a Set from the given patterns. Patterns are deduplicated and
// sorted so that two Sets built from the same patterns in different orders
// compare equal via Key.
func New(patterns ...string) *Set {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return &Set{patterns: out, key: strings.Join(out, "\x00")}
}

// Key implements hashwatch.GlobSet.
func (s *Set) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

// Patterns returns the set's patterns, in canonical (sorted) order. The
// returned slice must not be mutated.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	return s.patterns
}

// Match reports whether packageRelativePath matches any pattern in the set.
// An empty Set matches nothing.
func (s *Set) Match(packageRelativePath string) (bool, error) {
	if s == nil {
		return false, nil
	}
	for _, pattern := range s.patterns {
		ok, err := doublestar.Match(pattern, packageRelativePath)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
