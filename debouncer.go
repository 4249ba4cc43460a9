package hashwatch

import (
	"sync"
	"time"
)

// defaultDebounceTimeout is the delay after the last bump before a
// debouncer fires, absent an explicit WithDebounceTimeout option.
const defaultDebounceTimeout = 10 * time.Millisecond

// debouncer collapses a high-frequency stream of "something changed"
// signals into one deferred action: debounce returns T after the *last*
// bump, never before. Once it has fired it is terminal - bump becomes a
// permanent no-op - which is what lets the launcher tell "the hash is
// already running, start a fresh one" apart from "I can still ride this
// job's result".
type debouncer struct {
	mu      sync.Mutex
	serial  *int // nil once terminal
	bumped  chan struct{}
	timeout time.Duration
}

func newDebouncer(timeout time.Duration) *debouncer {
	if timeout <= 0 {
		timeout = defaultDebounceTimeout
	}
	zero := 0
	return &debouncer{
		serial:  &zero,
		bumped:  make(chan struct{}, 1),
		timeout: timeout,
	}
}

// bump records a new signal, returning true if the debouncer is still live.
// It is safe to call from any goroutine, concurrently with debounce.
func (d *debouncer) bump() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.serial == nil {
		return false
	}
	*d.serial++
	select {
	case d.bumped <- struct{}{}:
	default:
	}
	return true
}

// debounce suspends until timeout has elapsed since the most recent bump,
// then marks the debouncer terminal and returns. Intended to be called
// exactly once, by the job that owns this debouncer.
func (d *debouncer) debounce() {
	d.mu.Lock()
	observed := *d.serial
	d.mu.Unlock()

	deadline := time.Now().Add(d.timeout)
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	for {
		select {
		case <-d.bumped:
			d.mu.Lock()
			current := *d.serial
			d.mu.Unlock()
			if current == observed {
				// We raced: the timer had already fired (or is about to)
				// for this same serial value. Ignore the notification, the
				// deadline already accounts for it.
				continue
			}
			observed = current
			deadline = time.Now().Add(d.timeout)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.Until(deadline))

		case <-timer.C:
			d.mu.Lock()
			current := *d.serial
			if current == observed {
				// No bump since we last observed the serial: we're done.
				d.serial = nil
				d.mu.Unlock()
				return
			}
			observed = current
			d.mu.Unlock()
			deadline = time.Now().Add(d.timeout)
			timer.Reset(time.Until(deadline))
		}
	}
}
