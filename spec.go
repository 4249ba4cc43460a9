// Package hashwatch maintains, per workspace package in a monorepo, the
// version-control-equivalent content hashes of that package's tracked files,
// and answers synchronous queries for those hashes with minimal latency.
//
// A single Subscriber goroutine owns the index and reconciles three
// asynchronous upstreams - package-topology updates, filesystem change
// events, and hash-computation completions - against client queries. See
// Handle and New.
package hashwatch

import (
	"context"
	"strings"
)

type (
	// GlobSet is an opaque, comparable secondary index key: a set of input
	// globs scoping a HashSpec to something narrower than "every tracked
	// file in the package". The core never interprets the globs itself; it
	// only needs GlobSet to be usable as a map key (see HashSpec) and, for
	// the conservative file-event invalidation policy, comparable to "no
	// globs" (nil).
	GlobSet interface {
		// Key returns a canonical, order-independent string form suitable
		// for use as a map key companion (GlobSet values are compared by
		// this key, not by identity).
		Key() string
	}

	// HashSpec is the query/index key: a package plus an optional input
	// scope. Two specs with the same PackagePath but different Inputs are
	// distinct index entries.
	HashSpec struct {
		// PackagePath is repo-root-relative, using forward slashes, with no
		// leading or trailing slash ("" denotes the repo root package).
		PackagePath string
		// Inputs is nil for "the package's default, full set of tracked
		// files". A non-nil GlobSet narrows that set.
		Inputs GlobSet
	}

	// GitHashes is an opaque mapping from a package-relative file path to
	// its content hash, as computed by a HashFacility. The core never
	// parses it; it only clones and forwards it.
	GitHashes map[string]string

	// TelemetrySink is a pass-through slot threaded into every HashFacility
	// call. The core never invokes it and a nil TelemetrySink is always
	// valid; it exists so a HashFacility implementation can report timing
	// or counters without changing this package's interface.
	TelemetrySink interface {
		Event(name string)
	}

	// HashFacility computes GitHashes for a package tree. Implementations
	// are invoked from a blocking-tolerant worker and may perform I/O.
	// See package gitscm for the default implementation.
	HashFacility interface {
		Hash(ctx context.Context, repoRoot, packagePath string, inputs GlobSet, telemetry TelemetrySink) (GitHashes, error)
	}

	// Topology enumerates the workspace packages known at a point in time.
	Topology struct {
		// PackagePaths are repo-root-relative package roots, in the same
		// canonical form as HashSpec.PackagePath.
		PackagePaths []string
	}

	// TopologyUpdate is what the topology-discovery upstream publishes.
	// Exactly one of Err or Topology is meaningful, selected by Err == nil.
	TopologyUpdate struct {
		Topology Topology
		Err      error
	}

	// TopologyWatcher is the upstream package-topology discovery facade.
	// Changed delivers on every new value (including the initial one); a
	// closed channel means discovery itself is gone for good.
	TopologyWatcher interface {
		Changed() <-chan TopologyUpdate
	}

	// FileEvent carries a batch of absolute paths that changed together.
	FileEvent struct {
		Paths []string
	}

	// FileEventSource is the upstream filesystem-notification facade. See
	// package filewatch for the default fsnotify-backed implementation.
	// Subscribe may block until the underlying watcher is ready; the
	// returned cancel func must be called to release the subscription.
	FileEventSource interface {
		Subscribe(ctx context.Context) (events <-chan FileEventOrError, cancel func(), err error)
	}

	// FileEventOrError is one message from a FileEventSource subscription:
	// exactly one of Event, Err, Lagged, or Closed is set.
	FileEventOrError struct {
		Event  FileEvent
		Err    error
		Lagged bool
		Closed bool
	}
)

// CanonicalPackagePath normalizes a repo-relative package path into the form
// HashSpec.PackagePath and the index require: forward slashes, no leading or
// trailing slash, "." collapsed to "".
func CanonicalPackagePath(p string) string {
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}
