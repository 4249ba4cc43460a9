package hashwatch

import "context"

// Handle is the public façade: it owns the Subscriber's event loop and
// exposes the one operation clients need, GetFileHashes. A Handle must be
// released with Close once it is no longer needed.
type Handle struct {
	queries chan query
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts a Handle backed by the given upstreams: topology resolves the
// set of workspace packages, fileEvents reports filesystem changes under
// repoRoot, and facility computes GitHashes on demand. repoRoot must be an
// absolute, cleaned path.
func New(repoRoot string, topology TopologyWatcher, fileEvents FileEventSource, facility HashFacility, opts ...Option) *Handle {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l := &launcher{
		repoRoot:        repoRoot,
		facility:        facility,
		telemetry:       cfg.telemetry,
		debounceTimeout: cfg.debounceTimeout,
		limiter:         cfg.limiter(),
		logger:          cfg.logger,
		jobCtx:          ctx,
	}
	s := newSubscriber(repoRoot, l, cfg.logger)

	queries := make(chan query, cfg.queryBufferSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.watch(ctx, topology, fileEvents, queries)
	}()

	return &Handle{queries: queries, cancel: cancel, done: done}
}

// GetFileHashes resolves spec to its current GitHashes, waiting for an
// in-flight computation if necessary. It returns an *Error (see Kind) for
// an unknown package, a hash facility failure, or the watcher being
// unavailable altogether. If ctx ends first, it returns ctx.Err() unwrapped.
func (h *Handle) GetFileHashes(ctx context.Context, spec HashSpec) (GitHashes, error) {
	replyCh := make(chan reply, 1)

	select {
	case h.queries <- query{spec: spec, reply: replyCh}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, errUnavailable("hash watcher has stopped")
	}

	select {
	case r := <-replyCh:
		return r.hashes, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, errUnavailable("hash watcher has stopped")
	}
}

// Close stops the Handle's event loop and releases its upstream
// subscriptions. It blocks until the loop has fully exited. Close is
// idempotent.
func (h *Handle) Close() {
	h.cancel()
	<-h.done
}
