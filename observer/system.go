package observer

import (
	"errors"
	"log/slog"
)

// System owns the mutable state of one reactive runtime: the stack of
// targets currently collecting dependencies, id sequences, the scheduler
// queue and the tick callbacks. A System is not safe for concurrent use;
// every read, write and notification happens on one logical thread.
type System struct {
	cfg     Config
	logger  *slog.Logger
	onError ErrorHandler
	onWarn  WarnHandler

	// target is the watcher being evaluated, mirrored at the top of
	// targetStack. A nil entry disables tracking.
	target      Target
	targetStack []Target

	depSeq     uint64
	watcherSeq uint64

	// deps with tombstoned subscriber slots, compacted after a flush
	pendingCleanup []*Dep

	shouldObserve bool

	sched scheduler

	callbacks   []func() error
	tickPending bool
}

func NewSystem(opts ...Option) *System {
	s := &System{
		cfg:           DefaultConfig(),
		logger:        slog.Default(),
		shouldObserve: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched.reset()
	return s
}

func (s *System) Config() Config {
	return s.cfg
}

func (s *System) Logger() *slog.Logger {
	return s.logger
}

// Target returns the watcher currently collecting dependencies, or nil.
func (s *System) Target() Target {
	return s.target
}

// PushTarget makes t the current target. Every PushTarget must be paired
// with a PopTarget on the same call path, including error paths.
func (s *System) PushTarget(t Target) {
	s.targetStack = append(s.targetStack, t)
	s.target = t
}

// PopTarget restores the target that was current before the matching
// PushTarget.
func (s *System) PopTarget() {
	if len(s.targetStack) == 0 {
		s.target = nil
		return
	}
	s.targetStack = s.targetStack[:len(s.targetStack)-1]
	if n := len(s.targetStack); n > 0 {
		s.target = s.targetStack[n-1]
	} else {
		s.target = nil
	}
}

// PauseTracking disables dependency collection until ResumeTracking.
func (s *System) PauseTracking() {
	s.PushTarget(nil)
}

func (s *System) ResumeTracking() {
	s.PopTarget()
}

// Untracked runs fn without registering any reads as dependencies.
func (s *System) Untracked(fn func()) {
	s.PauseTracking()
	defer s.ResumeTracking()
	fn()
}

// ToggleObserving turns creation of new Observers on or off. Existing
// observers are unaffected.
func (s *System) ToggleObserving(on bool) {
	s.shouldObserve = on
}

func (s *System) nextDepID() uint64 {
	id := s.depSeq
	s.depSeq++
	return id
}

func (s *System) nextWatcherID() uint64 {
	s.watcherSeq++
	return s.watcherSeq
}

func (s *System) scheduleCleanup(d *Dep) {
	s.pendingCleanup = append(s.pendingCleanup, d)
}

// cleanupDeps compacts every dep that tombstoned a subscriber since the
// last call.
func (s *System) cleanupDeps() {
	for _, d := range s.pendingCleanup {
		d.compact()
	}
	s.pendingCleanup = s.pendingCleanup[:0]
}

// NextTick defers fn until the next call to Tick.
func (s *System) NextTick(fn func() error) {
	s.callbacks = append(s.callbacks, fn)
	s.tickPending = true
}

// Pending reports whether callbacks are waiting for the next tick.
func (s *System) Pending() bool {
	return s.tickPending
}

// Tick runs the callbacks queued before it was called. Callbacks queued
// while ticking wait for the following Tick. Every callback runs even if an
// earlier one fails; the failures are joined.
func (s *System) Tick() error {
	if !s.tickPending {
		s.cleanupDeps()
		return nil
	}
	s.tickPending = false
	cbs := s.callbacks
	s.callbacks = nil

	var errs []error
	for _, cb := range cbs {
		if err := cb(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Drain ticks until nothing is pending or maxTicks is reached.
func (s *System) Drain(maxTicks int) error {
	var errs []error
	for i := 0; i < maxTicks && s.tickPending; i++ {
		if err := s.Tick(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.tickPending {
		errs = append(errs, ErrTickBudget)
	}
	return errors.Join(errs...)
}
