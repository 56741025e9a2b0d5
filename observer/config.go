package observer

import "log/slog"

// DefaultMaxUpdateCount is how many times a single watcher may re-enter the
// same flush before the scheduler reports an infinite update loop.
const DefaultMaxUpdateCount = 100

type Config struct {
	// Async defers watcher runs to the next tick. When false the queue is
	// flushed as soon as a watcher is enqueued and Dep.Notify fires
	// subscribers in ascending id order.
	Async bool
	// MaxUpdateCount caps re-entry of one watcher within one flush.
	MaxUpdateCount int
	// Silent suppresses warnings.
	Silent bool
	// Dev enables OnTrack/OnTrigger debug events.
	Dev bool
	// ServerRendering disables observation unless mock mode is requested.
	ServerRendering bool
}

func DefaultConfig() Config {
	return Config{
		Async:          true,
		MaxUpdateCount: DefaultMaxUpdateCount,
	}
}

type Option func(*System)

func WithConfig(cfg Config) Option {
	return func(s *System) {
		if cfg.MaxUpdateCount <= 0 {
			cfg.MaxUpdateCount = DefaultMaxUpdateCount
		}
		s.cfg = cfg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler routes errors raised by user-facing watchers and
// callbacks. Without one they are logged at error level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *System) {
		s.onError = h
	}
}

// WithWarnHandler receives every non-fatal diagnostic. Without one they are
// logged at warn level.
func WithWarnHandler(h WarnHandler) Option {
	return func(s *System) {
		s.onWarn = h
	}
}
