// Package radixindex adapts github.com/armon/go-radix to the one thing
// hashwatch's package index needs from a trie: given an arbitrary changed
// file path, find the longest known package root that is an ancestor of it,
// in sub-linear time, without false-prefix matches between sibling packages
// that merely share a string prefix (e.g. "foo" and "foo-extra").
package radixindex

import (
	"strings"

	radix "github.com/armon/go-radix"
)

// Index is a set of canonical, repo-relative package paths ("" denotes the
// repo root package), queryable by longest-ancestor-of-path.
type Index struct {
	tree *radix.Tree
}

func New() *Index {
	return &Index{tree: radix.New()}
}

// key maps a canonical package path to the string actually stored in the
// trie: every non-root package gets a trailing separator appended, so that
// LongestPrefix on the trie can only ever match at a path-component
// boundary. The repo-root package ("") is stored as-is; being the empty
// string, it is a prefix of everything and therefore always the fallback
// match when nothing more specific applies.
func key(packagePath string) string {
	if packagePath == "" {
		return ""
	}
	return packagePath + "/"
}

// Insert records packagePath as present in the index. It is idempotent.
func (idx *Index) Insert(packagePath string) {
	idx.tree.Insert(key(packagePath), packagePath)
}

// Delete removes packagePath from the index, if present.
func (idx *Index) Delete(packagePath string) {
	idx.tree.Delete(key(packagePath))
}

// Contains reports whether packagePath is present.
func (idx *Index) Contains(packagePath string) bool {
	_, ok := idx.tree.Get(key(packagePath))
	return ok
}

// LongestPrefixPackage returns the longest known package path that is an
// ancestor of, or equal to, filePath, where filePath is a repo-relative path
// using forward slashes. The second return value is false if no package
// claims the path.
func (idx *Index) LongestPrefixPackage(filePath string) (string, bool) {
	filePath = strings.TrimPrefix(filePath, "/")
	// Search with a trailing separator, in the same form key uses, so that a
	// package root itself matches its own stored key.
	_, value, ok := idx.tree.LongestPrefix(filePath + "/")
	if !ok {
		return "", false
	}
	return value.(string), true
}

// Walk invokes fn for every package path currently indexed, in lexical trie
// order. Returning true from fn stops the walk early.
func (idx *Index) Walk(fn func(packagePath string) (stop bool)) {
	idx.tree.Walk(func(_ string, v interface{}) bool {
		return fn(v.(string))
	})
}

// Len reports the number of indexed package paths.
func (idx *Index) Len() int {
	return idx.tree.Len()
}
