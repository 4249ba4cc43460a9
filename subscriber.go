package hashwatch

import (
	"context"
	"path/filepath"
	"strings"
)

// subscriber is the sole owner of the package index. It runs on a single
// goroutine (watch) and reconciles package-topology updates, filesystem
// change events, and hash-job completions against client queries; nothing
// else is permitted to touch its fileHashes index, which is what lets the
// index itself stay lock-free.
type subscriber struct {
	repoRoot string
	launcher *launcher
	logger   *stdLogger

	index *fileHashes

	// serviceErr is non-nil whenever package discovery itself is down, so
	// a query for a package absent from the index can be told "the service
	// can't answer at all" instead of the misleading "no such package".
	serviceErr error
}

func newSubscriber(repoRoot string, l *launcher, logger *stdLogger) *subscriber {
	return &subscriber{
		repoRoot: repoRoot,
		launcher: l,
		logger:   logger,
		index:    newFileHashes(),
	}
}

// watch runs the event loop until ctx is canceled, the file event
// subscription closes, or the query channel closes; a closed topology
// channel drains the index but does not stop the loop. topology and fileEvents are the two asynchronous
// facades supplied to New; queries carries the Handle's inbound requests.
//
// Shutdown is checked ahead of every other case, so a canceled ctx always
// wins a race against a simultaneously ready upstream.
func (s *subscriber) watch(ctx context.Context, topology TopologyWatcher, fileEvents FileEventSource, queries <-chan query) {
	defer s.index.drain("hash watcher stopped")

	events, cancel, err := fileEvents.Subscribe(ctx)
	if err != nil {
		s.logger.warn("file event subscription failed, hash watcher cannot start", "error", err)
		return
	}
	defer cancel()

	hashUpdates := make(chan hashUpdate, 16)
	topologyCh := topology.Changed()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return

		case upd, ok := <-topologyCh:
			if !ok {
				s.logger.debug("package discovery channel closed")
				s.serviceErr = errUnavailable("package discovery is unavailable")
				s.index.drain("package discovery is unavailable")
				topologyCh = nil
				continue
			}
			s.handleTopologyUpdate(upd, hashUpdates)

		case fe, ok := <-events:
			if !ok || fe.Closed {
				s.logger.debug("file event source closed, hash watcher stopping")
				s.index.drain("file watcher closed")
				return
			}
			s.handleFileEventOrError(fe, hashUpdates)

		case hu := <-hashUpdates:
			s.handleHashCompletion(hu)

		case q, ok := <-queries:
			if !ok {
				return
			}
			s.handleQuery(q)
		}
	}
}

// handleTopologyUpdate implements the package-discovery reconciliation: an
// errored update means discovery is unavailable and every tracked package is
// drained; otherwise every package missing from the new topology is dropped
// and every package newly present gets a fresh Pending job queued.
func (s *subscriber) handleTopologyUpdate(upd TopologyUpdate, sink chan<- hashUpdate) {
	if upd.Err != nil {
		s.logger.warn("package discovery reported an error", "error", upd.Err)
		s.serviceErr = errUnavailable("package discovery is unavailable")
		s.index.drain("package discovery is unavailable")
		return
	}
	s.serviceErr = nil

	wanted := make(map[string]struct{}, len(upd.Topology.PackagePaths))
	for _, p := range upd.Topology.PackagePaths {
		wanted[CanonicalPackagePath(p)] = struct{}{}
	}

	s.index.dropMatching(func(pkg string) bool {
		_, ok := wanted[pkg]
		return !ok
	}, "package was removed")

	for pkg := range wanted {
		spec := HashSpec{PackagePath: pkg}
		if s.index.contains(spec) {
			continue
		}
		s.queuePackageHash(spec, sink)
	}
}

// handleFileEventOrError dispatches one message from the file event source:
// a genuine change event is classified and routed to invalidatePackage; a
// reported error or lag gap is treated conservatively as "everything tracked
// might be stale", since the set of paths actually missed is unknowable.
func (s *subscriber) handleFileEventOrError(fe FileEventOrError, sink chan<- hashUpdate) {
	switch {
	case fe.Err != nil:
		s.logger.warn("file watcher reported an error, invalidating all tracked packages", "error", fe.Err)
		s.invalidateAll(sink)
	case fe.Lagged:
		s.logger.warn("file watcher lagged, invalidating all tracked packages")
		s.invalidateAll(sink)
	default:
		s.handleFileEvent(fe.Event, sink)
	}
}

// handleFileEvent classifies each changed path to its owning package by
// longest-prefix match and invalidates every distinct package touched.
// Paths outside repoRoot, or matching no known package, are ignored.
func (s *subscriber) handleFileEvent(ev FileEvent, sink chan<- hashUpdate) {
	affected := make(map[string]struct{})
	for _, p := range ev.Paths {
		rel, ok := s.relativize(p)
		if !ok {
			continue
		}
		pkg, ok := s.index.longestPrefixPackage(rel)
		if !ok {
			continue
		}
		affected[pkg] = struct{}{}
	}
	for pkg := range affected {
		s.invalidatePackage(pkg, sink)
	}
}

// relativize converts an absolute path reported by a FileEventSource into
// the canonical, repo-root-relative form the index keys on.
func (s *subscriber) relativize(p string) (string, bool) {
	rel, err := filepath.Rel(s.repoRoot, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return CanonicalPackagePath(rel), true
}

// invalidateAll invalidates every package currently indexed. Used when the
// file watcher itself reports an error or a lag gap: any file anywhere
// might have changed, so every tracked package must be treated as stale.
func (s *subscriber) invalidateAll(sink chan<- hashUpdate) {
	var packages []string
	s.index.trie.Walk(func(pkg string) bool {
		packages = append(packages, pkg)
		return false
	})
	for _, pkg := range packages {
		s.invalidatePackage(pkg, sink)
	}
}

// invalidatePackage implements the conservative invalidation policy: a
// change anywhere under pkg invalidates every HashSpec indexed for it,
// regardless of Inputs, rather than only the one whose globs happen to
// match the changed path (see SPEC_FULL.md's Open Question decision). A
// Pending entry is bumped in place; everything else gets a fresh job.
func (s *subscriber) invalidatePackage(pkg string, sink chan<- hashUpdate) {
	entries := s.index.statesForPackage(pkg)
	if len(entries) == 0 {
		s.queuePackageHash(HashSpec{PackagePath: pkg}, sink)
		return
	}
	for _, e := range entries {
		switch e.state.kind {
		case statePending:
			if !e.state.deb.bump() {
				// The debouncer already fired; a result computed against the
				// old version may still be in flight, but a fresh job with a
				// fresh version supersedes whatever it eventually reports.
				// Any waiters already queued on the old entry must carry
				// over, or they would never be notified.
				v, d := s.launcher.launch(e.spec, sink)
				s.index.insert(e.spec, pendingState(v, d, e.state.waiters))
			}
		default:
			s.queuePackageHash(e.spec, sink)
		}
	}
}

// queuePackageHash installs a fresh Pending job for spec, overwriting
// whatever entry (if any) was there before.
func (s *subscriber) queuePackageHash(spec HashSpec, sink chan<- hashUpdate) {
	v, d := s.launcher.launch(spec, sink)
	s.index.insert(spec, pendingState(v, d, nil))
}

// handleHashCompletion applies one job's result, after checking it is still
// current: the entry must still be Pending and its version must still be the
// one the job was launched with, otherwise the result is stale and dropped.
// Waiters are notified before the entry's state is overwritten, so every
// query resolves against a consistent (state, reply) pair.
func (s *subscriber) handleHashCompletion(hu hashUpdate) {
	st, ok := s.index.getMut(hu.spec)
	if !ok {
		// The package was dropped from the topology while the job was in
		// flight. Nothing left to apply the result to.
		return
	}
	if st.kind != statePending || st.version != hu.version {
		return
	}

	var next *hashState
	if hu.result.err != nil {
		s.logger.warn("hash facility failed", "package", hu.spec.PackagePath, "error", hu.result.err)
		next = unavailableState(hu.result.err.Error())
	} else {
		next = readyState(hu.result.hashes)
	}

	st.notifyWaiters(s.replyFor(next))
	*st = *next
}

func (s *subscriber) replyFor(st *hashState) reply {
	switch st.kind {
	case stateReady:
		return reply{hashes: cloneHashes(st.hashes)}
	case stateUnavailable:
		return reply{err: errHashing(st.reason)}
	default:
		return reply{}
	}
}

// handleQuery resolves one client query against the index's current state:
// Ready replies immediately, Pending enqueues the caller as a waiter,
// Unavailable replies with the stored reason, and an absent spec is either
// UnknownPackage or, if discovery itself is down, the service-wide error.
func (s *subscriber) handleQuery(q query) {
	st, ok := s.index.getMut(q.spec)
	if !ok {
		err := s.serviceErr
		if err == nil {
			err = errUnknownPackage(q.spec)
		}
		sendReply(q.reply, reply{err: err})
		return
	}

	switch st.kind {
	case stateReady:
		sendReply(q.reply, reply{hashes: cloneHashes(st.hashes)})
	case stateUnavailable:
		sendReply(q.reply, reply{err: errHashing(st.reason)})
	case statePending:
		st.waiters = append(st.waiters, q.reply)
	}
}

// sendReply is a non-blocking send: q.reply is always created with capacity
// one, so this only ever fails to send when the caller has already given up
// (e.g. its ctx was canceled), in which case dropping the reply is correct.
func sendReply(ch chan reply, r reply) {
	select {
	case ch <- r:
	default:
	}
}
