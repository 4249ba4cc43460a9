package hashwatch

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// defaultQueryBufferSize is the capacity of the channel New creates for
// Handle.GetFileHashes requests.
const defaultQueryBufferSize = 16

// config collects every New option into the values the Subscriber and
// launcher actually need.
type config struct {
	debounceTimeout time.Duration
	queryBufferSize int
	rateLimits      map[time.Duration]int
	telemetry       TelemetrySink
	logger          *stdLogger
}

func defaultConfig() *config {
	return &config{
		debounceTimeout: defaultDebounceTimeout,
		queryBufferSize: defaultQueryBufferSize,
		logger:          defaultLogger(),
	}
}

// Option configures a Handle built by New.
type Option func(*config)

// WithDebounceTimeout overrides how long a package must go unchanged before
// a queued hash job actually runs. The default is 10ms.
func WithDebounceTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.debounceTimeout = d
		}
	}
}

// WithQueryBufferSize overrides the capacity of Handle's internal query
// channel. The default is 16.
func WithQueryBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queryBufferSize = n
		}
	}
}

// WithRateLimit caps how often the hash facility may be invoked for a single
// package, as a set of sliding windows (see github.com/joeycumines/go-catrate).
// Absent this option, hash jobs are only throttled by debouncing.
func WithRateLimit(rates map[time.Duration]int) Option {
	return func(c *config) {
		c.rateLimits = rates
	}
}

// WithTelemetry installs a TelemetrySink threaded into every HashFacility
// call. The default is nil (no telemetry).
func WithTelemetry(sink TelemetrySink) Option {
	return func(c *config) {
		c.telemetry = sink
	}
}

// WithLogger installs the given structured logger in place of the default
// stderr JSON logger. Passing a nil Logger disables logging entirely.
func WithLogger(log Logger) Option {
	return func(c *config) {
		if log == nil {
			c.logger = noopLogger()
			return
		}
		c.logger = &stdLogger{external: log}
	}
}

// Logger is the minimal structured-logging surface New accepts from callers
// that don't want hashwatch's default logiface/stumpy pipeline.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

func (c *config) limiter() *catrate.Limiter {
	if len(c.rateLimits) == 0 {
		return nil
	}
	return catrate.NewLimiter(c.rateLimits)
}
