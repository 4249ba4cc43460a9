package hashwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_FiresAfterTimeout(t *testing.T) {
	d := newDebouncer(5 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.debounce()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounce did not fire")
	}
}

func TestDebouncer_BumpExtendsDeadline(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		d.debounce()
		close(done)
	}()

	// Keep bumping for longer than the timeout, so debounce must not fire
	// until bumping stops.
	deadline := start.Add(80 * time.Millisecond)
	for time.Now().Before(deadline) {
		d.bump()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("debounce did not fire")
	}
}

func TestDebouncer_BumpIsNoOpAfterTerminal(t *testing.T) {
	d := newDebouncer(time.Millisecond)
	d.debounce()

	assert.False(t, d.bump())
}
