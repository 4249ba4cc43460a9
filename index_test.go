package hashwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHashes_InsertContainsGetMut(t *testing.T) {
	f := newFileHashes()
	spec := HashSpec{PackagePath: "packages/foo"}

	assert.False(t, f.contains(spec))

	f.insert(spec, pendingState(newVersion(), newDebouncer(time.Millisecond), nil))
	assert.True(t, f.contains(spec))

	st, ok := f.getMut(spec)
	require.True(t, ok)
	assert.Equal(t, statePending, st.kind)
}

func TestFileHashes_DistinctInputsAreDistinctEntries(t *testing.T) {
	f := newFileHashes()
	base := HashSpec{PackagePath: "packages/foo"}
	scoped := HashSpec{PackagePath: "packages/foo", Inputs: fakeGlobSet("only-src")}

	f.insert(base, readyState(GitHashes{"a": "1"}))
	f.insert(scoped, readyState(GitHashes{"b": "2"}))

	assert.True(t, f.contains(base))
	assert.True(t, f.contains(scoped))

	baseState, _ := f.getMut(base)
	scopedState, _ := f.getMut(scoped)
	assert.NotSame(t, baseState, scopedState)
}

func TestFileHashes_LongestPrefixPackage(t *testing.T) {
	f := newFileHashes()
	f.insert(HashSpec{PackagePath: ""}, readyState(nil))
	f.insert(HashSpec{PackagePath: "packages/foo"}, readyState(nil))

	pkg, ok := f.longestPrefixPackage("packages/foo/main.go")
	require.True(t, ok)
	assert.Equal(t, "packages/foo", pkg)

	pkg, ok = f.longestPrefixPackage("other/file.go")
	require.True(t, ok)
	assert.Equal(t, "", pkg)
}

func TestFileHashes_DropMatchingNotifiesWaiters(t *testing.T) {
	f := newFileHashes()
	spec := HashSpec{PackagePath: "packages/foo"}

	waiter := make(chan reply, 1)
	f.insert(spec, pendingState(newVersion(), newDebouncer(time.Minute), []chan reply{waiter}))

	f.dropMatching(func(string) bool { return true }, "package was removed")

	assert.False(t, f.contains(spec))
	select {
	case r := <-waiter:
		require.Error(t, r.err)
		var hwErr *Error
		require.ErrorAs(t, r.err, &hwErr)
		assert.Equal(t, KindUnavailable, hwErr.Kind)
	default:
		t.Fatal("waiter was not notified")
	}
}

func TestFileHashes_Drain(t *testing.T) {
	f := newFileHashes()
	f.insert(HashSpec{PackagePath: "a"}, readyState(nil))
	f.insert(HashSpec{PackagePath: "b"}, readyState(nil))
	require.Equal(t, 2, f.len())

	f.drain("hash watcher stopped")

	assert.Equal(t, 0, f.len())
}

func TestHashState_NotifyWaitersClearsList(t *testing.T) {
	st := pendingState(newVersion(), newDebouncer(time.Minute), nil)
	w1 := make(chan reply, 1)
	w2 := make(chan reply, 1)
	st.waiters = append(st.waiters, w1, w2)

	st.notifyWaiters(reply{hashes: GitHashes{"x": "y"}})

	assert.Nil(t, st.waiters)
	for _, w := range []chan reply{w1, w2} {
		select {
		case r := <-w:
			assert.Equal(t, GitHashes{"x": "y"}, r.hashes)
		default:
			t.Fatal("waiter not notified")
		}
	}
}

func TestCloneHashes(t *testing.T) {
	orig := GitHashes{"a": "1"}
	clone := cloneHashes(orig)
	clone["a"] = "2"
	assert.Equal(t, "1", orig["a"])
}

// fakeGlobSet is a minimal hashwatch.GlobSet for tests that only need a
// distinct, comparable key - no actual matching behavior.
type fakeGlobSet string

func (f fakeGlobSet) Key() string { return string(f) }
