package hashwatch

import "fmt"

// Kind classifies an Error returned to a client of Handle.GetFileHashes.
type Kind int

const (
	// KindUnknownPackage means the package named by a HashSpec is not part
	// of the most recently observed topology.
	KindUnknownPackage Kind = iota + 1

	// KindHashingError means the hash facility itself failed to compute
	// hashes for a package; the reason is the facility's stringified error.
	KindHashingError

	// KindUnavailable means the service cannot answer at all: topology has
	// not yet (or no longer) resolved, the filesystem-notification stream
	// closed, or the request/reply plumbing broke.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnknownPackage:
		return "unknown_package"
	case KindHashingError:
		return "hashing_error"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced across the Handle boundary. Every
// failure mode named in spec.md funnels into one of these three Kinds.
type Error struct {
	Kind Kind
	// Spec is populated for KindUnknownPackage.
	Spec HashSpec
	// Reason is the human-readable detail: the hash facility's stringified
	// error for KindHashingError, or the drain/disconnect reason for
	// KindUnavailable.
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownPackage:
		return fmt.Sprintf("hashwatch: package not found: %s %v", e.Spec.PackagePath, e.Spec.Inputs)
	case KindHashingError:
		return fmt.Sprintf("hashwatch: package hashing encountered an error: %s", e.Reason)
	case KindUnavailable:
		return fmt.Sprintf("hashwatch: file hashing is not available: %s", e.Reason)
	default:
		return fmt.Sprintf("hashwatch: unknown error (kind=%d): %s", e.Kind, e.Reason)
	}
}

// Is supports errors.Is by Kind equality, ignoring Spec/Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func errUnknownPackage(spec HashSpec) *Error {
	return &Error{Kind: KindUnknownPackage, Spec: spec}
}

func errHashing(reason string) *Error {
	return &Error{Kind: KindHashingError, Reason: reason}
}

func errUnavailable(reason string) *Error {
	return &Error{Kind: KindUnavailable, Reason: reason}
}
