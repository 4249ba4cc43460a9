package hashwatch

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// stdLogger adapts a structured logiface logger to the small, fixed set of
// call shapes the Subscriber and launcher need: a message plus an even
// number of alternating string-key/any-value pairs. If external is set (via
// WithLogger), it is used instead of log.
type stdLogger struct {
	log      *logiface.Logger[*stumpy.Event]
	external Logger
}

// defaultLogger writes leveled JSON to stderr via stumpy, matching the shape
// demonstrated by logiface-stumpy's own examples.
func defaultLogger() *stdLogger {
	return &stdLogger{log: stumpy.L.New(stumpy.L.WithStumpy())}
}

func noopLogger() *stdLogger {
	return &stdLogger{log: logiface.New[*stumpy.Event]()}
}

func (l *stdLogger) fields(b *logiface.Builder[*stumpy.Event], kv []any) *logiface.Builder[*stumpy.Event] {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Any(key, kv[i+1])
	}
	return b
}

func (l *stdLogger) debug(msg string, kv ...any) {
	if l.external != nil {
		l.external.Debug(msg, kv...)
		return
	}
	l.fields(l.log.Debug(), kv).Log(msg)
}

func (l *stdLogger) info(msg string, kv ...any) {
	if l.external != nil {
		l.external.Info(msg, kv...)
		return
	}
	l.fields(l.log.Info(), kv).Log(msg)
}

func (l *stdLogger) warn(msg string, kv ...any) {
	if l.external != nil {
		l.external.Warn(msg, kv...)
		return
	}
	l.fields(l.log.Warning(), kv).Log(msg)
}

func (l *stdLogger) error(msg string, kv ...any) {
	if l.external != nil {
		l.external.Error(msg, kv...)
		return
	}
	l.fields(l.log.Err(), kv).Log(msg)
}
