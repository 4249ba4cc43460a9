package hashwatch

import "github.com/joeycumines/hashwatch/internal/radixindex"

// stateKind tags the three-way hashState union: Pending, Ready, or
// Unavailable (spec.md §3).
type stateKind int

const (
	statePending stateKind = iota
	stateReady
	stateUnavailable
)

// reply is what a waiting query eventually receives.
type reply struct {
	hashes GitHashes
	err    error
}

// hashState is the per-spec entry stored in the index. Exactly one of the
// three groups of fields is meaningful, selected by kind.
type hashState struct {
	kind stateKind

	// statePending
	version *version
	deb     *debouncer
	waiters []chan reply

	// stateReady
	hashes GitHashes

	// stateUnavailable
	reason string
}

func pendingState(v *version, d *debouncer, waiters []chan reply) *hashState {
	if waiters == nil {
		waiters = []chan reply{}
	}
	return &hashState{kind: statePending, version: v, deb: d, waiters: waiters}
}

func readyState(hashes GitHashes) *hashState {
	return &hashState{kind: stateReady, hashes: hashes}
}

func unavailableState(reason string) *hashState {
	return &hashState{kind: stateUnavailable, reason: reason}
}

// notifyWaiters replies to and clears every waiter on a Pending state. It is
// the only place waiters are ever drained, which is what guarantees every
// waiter sees exactly one reply, before the entry it waited on leaves
// Pending (spec.md §8, invariant 3).
func (s *hashState) notifyWaiters(r reply) {
	for _, w := range s.waiters {
		select {
		case w <- r:
		default:
			// Buffered by one; a reader that already gave up (e.g. its own
			// ctx was canceled) must never be allowed to block the loop.
		}
	}
	s.waiters = nil
}

func inputsKey(g GlobSet) string {
	if g == nil {
		return ""
	}
	return g.Key()
}

// entry pairs a hashState with the exact HashSpec it was inserted under, so
// that code walking a package's states (dropMatching, statesForPackage) can
// still recover Inputs well enough to relaunch a job for it.
type entry struct {
	spec  HashSpec
	state *hashState
}

// fileHashes is the package index: a radix trie over canonical package
// paths, for sub-linear longest-prefix-of-a-changed-file lookups, fronting a
// plain map from package path to its per-inputs entries.
type fileHashes struct {
	trie     *radixindex.Index
	packages map[string]map[string]*entry
}

func newFileHashes() *fileHashes {
	return &fileHashes{
		trie:     radixindex.New(),
		packages: make(map[string]map[string]*entry),
	}
}

func (f *fileHashes) contains(spec HashSpec) bool {
	states, ok := f.packages[spec.PackagePath]
	if !ok {
		return false
	}
	_, ok = states[inputsKey(spec.Inputs)]
	return ok
}

// insert upserts spec's state, preserving sibling specs under the same
// package that differ only in Inputs.
func (f *fileHashes) insert(spec HashSpec, state *hashState) {
	states, ok := f.packages[spec.PackagePath]
	if !ok {
		states = make(map[string]*entry)
		f.packages[spec.PackagePath] = states
		f.trie.Insert(spec.PackagePath)
	}
	states[inputsKey(spec.Inputs)] = &entry{spec: spec, state: state}
}

func (f *fileHashes) getMut(spec HashSpec) (*hashState, bool) {
	states, ok := f.packages[spec.PackagePath]
	if !ok {
		return nil, false
	}
	e, ok := states[inputsKey(spec.Inputs)]
	if !ok {
		return nil, false
	}
	return e.state, true
}

// statesForPackage returns every inputs-keyed entry currently indexed under
// packagePath, for the conservative file-event invalidation policy (see
// SPEC_FULL.md §7): a change anywhere in the package invalidates every
// HashSpec scoped to it, not only the default (Inputs == nil) one.
func (f *fileHashes) statesForPackage(packagePath string) map[string]*entry {
	return f.packages[packagePath]
}

// longestPrefixPackage returns the longest indexed package path that is an
// ancestor of filePath, if any.
func (f *fileHashes) longestPrefixPackage(filePath string) (string, bool) {
	return f.trie.LongestPrefixPackage(filePath)
}

// dropMatching removes every package for which predicate returns true,
// notifying any Pending waiters under it with Unavailable(reason) first.
func (f *fileHashes) dropMatching(predicate func(packagePath string) bool, reason string) {
	var doomed []string
	for pkg := range f.packages {
		if predicate(pkg) {
			doomed = append(doomed, pkg)
		}
	}
	for _, pkg := range doomed {
		states := f.packages[pkg]
		for _, e := range states {
			if e.state.kind == statePending {
				e.state.notifyWaiters(reply{err: errUnavailable(reason)})
			}
		}
		delete(f.packages, pkg)
		f.trie.Delete(pkg)
	}
}

// drain removes every package, notifying Pending waiters with
// Unavailable(reason) first. Shorthand for dropMatching(always-true).
func (f *fileHashes) drain(reason string) {
	f.dropMatching(func(string) bool { return true }, reason)
}

func (f *fileHashes) len() int {
	return f.trie.Len()
}

// cloneHashes returns a shallow copy of h, so a reply can hand out a GitHashes
// a caller is free to mutate without corrupting the index's stored value.
func cloneHashes(h GitHashes) GitHashes {
	out := make(GitHashes, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
