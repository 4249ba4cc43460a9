package hashwatch

// version is an identity-compared token stamped onto each hash job so a
// completion arriving after the job was superseded can be told apart from
// one that still matches the index's current Pending state. Two versions
// are equal iff they are the same allocation - never by value - which is
// why the type wraps a pointer to an unexported, otherwise-unused struct
// rather than e.g. a counter: a counter invites accidental reuse across
// packages, which would silently accept a stale completion.
//
// The field must have nonzero size: a genuinely zero-size struct's address
// is not guaranteed unique (the Go spec permits, and the gc runtime's
// mallocgc actually does, hand back the same &runtime.zerobase pointer for
// every zero-size allocation), which would make every newVersion() compare
// equal and silently defeat the staleness check this type exists for.
type version struct {
	_ byte
}

// newVersion issues a fresh, distinct version.
func newVersion() *version {
	return &version{}
}
