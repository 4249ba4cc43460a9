package hashwatch

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"
)

// launcher spawns debounced hash jobs. It never touches the index itself -
// it only hands back the (version, debouncer) pair the caller installs as a
// fresh Pending state, and later reports completion on sink.
type launcher struct {
	repoRoot        string
	facility        HashFacility
	telemetry       TelemetrySink
	debounceTimeout time.Duration
	limiter         *catrate.Limiter // nil disables rate limiting
	logger          *stdLogger
	jobCtx          context.Context // cancelled when the owning Subscriber stops
}

// launch installs a fresh Pending job for spec: it spawns a goroutine that
// first (optionally) waits out a rate limit, then debounces, then calls the
// hash facility on a dedicated goroutine (the facility is documented as
// blocking-tolerant, per spec.md §6), and finally best-effort sends a
// hashUpdate on sink. It never blocks the caller.
func (l *launcher) launch(spec HashSpec, sink chan<- hashUpdate) (*version, *debouncer) {
	v := newVersion()
	d := newDebouncer(l.debounceTimeout)

	go func() {
		if l.limiter != nil {
			if until, ok := l.limiter.Allow(spec.PackagePath); !ok {
				wait := time.Until(until)
				if wait > 0 {
					l.logger.debug("rate limiting hash job", "package", spec.PackagePath, "wait", wait)
					select {
					case <-l.jobCtx.Done():
						return
					case <-time.After(wait):
					}
				}
			}
		}

		d.debounce()

		select {
		case <-l.jobCtx.Done():
			return
		default:
		}

		// The hash facility performs blocking I/O; run it on its own
		// goroutine so the debounce/rate-limit wait above never ties up a
		// worker it doesn't need.
		go func() {
			hashes, err := l.facility.Hash(l.jobCtx, l.repoRoot, spec.PackagePath, spec.Inputs, l.telemetry)
			update := hashUpdate{spec: spec, version: v, result: hashResult{hashes: hashes, err: err}}
			select {
			case sink <- update:
			case <-l.jobCtx.Done():
				// The loop is terminating; dropping the result is fine, no
				// one is listening any more.
			}
		}()
	}()

	return v, d
}

// hashResult is the facility's outcome for one job.
type hashResult struct {
	hashes GitHashes
	err    error
}

// hashUpdate is what a launched job reports back to the Subscriber.
type hashUpdate struct {
	spec    HashSpec
	version *version
	result  hashResult
}
