package observer

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrTickBudget is returned by Drain when callbacks are still pending
	// after the allowed number of ticks.
	ErrTickBudget = errors.New("observa: tick budget exhausted")

	// ErrInvalidPath is reported when a watch expression is not a simple
	// dot-delimited path.
	ErrInvalidPath = errors.New("observa: invalid watch path")
)

// ErrorHandler receives errors from user-facing watchers. ctx is the value
// the error happened in (usually a *Watcher) and info describes where.
type ErrorHandler func(err error, ctx any, info string)

// Diagnostic is a recoverable condition that is reported instead of
// failing the operation.
type Diagnostic struct {
	Message string
	Attrs   []any
}

type WarnHandler func(d Diagnostic)

// EvalError wraps a failure inside an internal (non-user) watcher.
type EvalError struct {
	WatcherID  uint64
	Expression string
	Err        error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("observa: watcher %d (%s): %v", e.WatcherID, e.Expression, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Warn reports a diagnostic through the warn handler or the logger.
func (s *System) Warn(msg string, attrs ...any) {
	if s.cfg.Silent {
		return
	}
	if s.onWarn != nil {
		s.onWarn(Diagnostic{Message: msg, Attrs: attrs})
		return
	}
	s.logger.Warn(msg, attrs...)
}

// HandleError routes err to the configured error handler.
func (s *System) HandleError(err error, ctx any, info string) {
	if err == nil {
		return
	}
	// tracking stays off while the handler runs so it cannot subscribe
	// whatever watcher happened to be evaluating
	s.PauseTracking()
	defer s.ResumeTracking()

	if s.onError != nil {
		s.onError(err, ctx, info)
		return
	}
	s.logger.Error("error in "+info, slog.Any("error", err))
}

// InvokeWithErrorHandling calls fn and routes both a returned error and a
// panic to HandleError. Use it for every callback supplied by application
// code.
func (s *System) InvokeWithErrorHandling(fn func() error, ctx any, info string) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
		}()
		err = fn()
	}()
	if err != nil {
		s.HandleError(err, ctx, info)
	}
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", e)
	}
	return fmt.Errorf("panic: %v", r)
}
