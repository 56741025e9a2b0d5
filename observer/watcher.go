package observer

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Getter evaluates a watched expression. Every reactive read it performs is
// collected as a dependency of the watcher.
type Getter func() (any, error)

// Callback receives the new and old value when a watcher's value changes.
type Callback func(newValue, oldValue any) error

type WatcherOptions struct {
	// Deep reads every nested property of the value so mutations anywhere
	// inside it trigger the watcher.
	Deep bool
	// User marks watchers created by application code. Their errors go to
	// the error handler instead of being returned.
	User bool
	// Lazy watchers are not evaluated until Evaluate; a change only marks
	// them dirty.
	Lazy bool
	// Sync watchers run inside the notification instead of being queued.
	Sync bool
	// NoRecurse keeps a watcher from queueing itself while it evaluates.
	NoRecurse bool
	// Before runs right before the scheduler runs the watcher.
	Before func()
	// Updated runs after the flush that ran the watcher has drained.
	Updated func()
	// OnStop runs once on teardown.
	OnStop    func()
	OnTrack   func(e DebugEvent)
	OnTrigger func(e DebugEvent)
}

// Watcher evaluates a getter, collects the deps it touched, and re-runs
// when any of them notifies. It is used for render updates, computed
// properties and explicit watches.
type Watcher struct {
	sys        *System
	id         uint64
	expression string
	getter     Getter
	cb         Callback

	deep, user, lazy, sync, noRecurse bool
	dirty                            bool
	active                           bool

	before, updated, onStop func()
	onTrack, onTrigger      func(e DebugEvent)

	deps      []*Dep
	newDeps   []*Dep
	depIDs    mapset.Set[uint64]
	newDepIDs mapset.Set[uint64]

	value any
}

// NewWatcher creates a watcher over getter. Unless lazy, the getter runs
// once immediately; an error from that first run is returned for
// non-user watchers.
func NewWatcher(sys *System, getter Getter, cb Callback, opts *WatcherOptions) (*Watcher, error) {
	return newWatcher(sys, getter, "", cb, opts)
}

// NewPathWatcher watches a dot-delimited path resolved against root. A path
// that cannot be parsed is reported as a warning and watches nothing.
func NewPathWatcher(sys *System, root any, path string, cb Callback, opts *WatcherOptions) (*Watcher, error) {
	var getter Getter
	if segments, ok := ParsePath(path); ok {
		getter = func() (any, error) {
			return GetPath(root, segments), nil
		}
	} else {
		sys.Warn(fmt.Sprintf("Failed watching path: %q Watcher only accepts simple dot-delimited paths. For full control, use a function instead.", path),
			"error", ErrInvalidPath)
		getter = func() (any, error) { return nil, nil }
	}
	return newWatcher(sys, getter, path, cb, opts)
}

func newWatcher(sys *System, getter Getter, expression string, cb Callback, opts *WatcherOptions) (*Watcher, error) {
	w := &Watcher{
		sys:        sys,
		expression: expression,
		getter:     getter,
		cb:         cb,
		active:     true,
		depIDs:     mapset.NewThreadUnsafeSet[uint64](),
		newDepIDs:  mapset.NewThreadUnsafeSet[uint64](),
	}
	if opts != nil {
		w.deep = opts.Deep
		w.user = opts.User
		w.lazy = opts.Lazy
		w.sync = opts.Sync
		w.noRecurse = opts.NoRecurse
		w.before = opts.Before
		w.updated = opts.Updated
		w.onStop = opts.OnStop
		w.onTrack = opts.OnTrack
		w.onTrigger = opts.OnTrigger
	}
	if w.getter == nil {
		w.getter = func() (any, error) { return nil, nil }
	}
	w.id = sys.nextWatcherID()
	w.dirty = w.lazy
	if w.expression == "" {
		w.expression = fmt.Sprintf("watcher#%d", w.id)
	}

	if !w.lazy {
		v, err := w.Get()
		if err != nil {
			return w, err
		}
		w.value = v
	}
	return w, nil
}

func (w *Watcher) ID() uint64 { return w.id }
func (w *Watcher) Expression() string { return w.expression }
func (w *Watcher) Value() any { return w.value }
func (w *Watcher) Dirty() bool { return w.dirty }
func (w *Watcher) Active() bool { return w.active }
func (w *Watcher) Lazy() bool { return w.lazy }
func (w *Watcher) User() bool { return w.user }
func (w *Watcher) SyncMode() bool { return w.sync }
func (w *Watcher) DeepMode() bool { return w.deep }

// Deps returns the deps collected by the last evaluation.
func (w *Watcher) Deps() []*Dep {
	return append([]*Dep(nil), w.deps...)
}

func (w *Watcher) OnTrack(e DebugEvent) {
	if w.onTrack != nil {
		w.onTrack(e)
	}
}

func (w *Watcher) OnTrigger(e DebugEvent) {
	if w.onTrigger != nil {
		w.onTrigger(e)
	}
}

// Get evaluates the getter with w as the current target and re-collects
// dependencies. Deps not touched by this evaluation are unsubscribed.
func (w *Watcher) Get() (value any, err error) {
	w.sys.PushTarget(w)
	defer func() {
		// touch every nested property so all are tracked for deep watching
		if w.deep {
			traverse(value)
		}
		w.sys.PopTarget()
		w.cleanupDeps()
	}()

	value, err = w.callGetter()
	if err != nil {
		if w.user {
			w.sys.HandleError(err, w, fmt.Sprintf("getter for watcher %q", w.expression))
			return value, nil
		}
		return value, &EvalError{WatcherID: w.id, Expression: w.expression, Err: err}
	}
	return value, nil
}

// callGetter runs the getter. A panic in a user getter comes back as an
// error so it takes the same route as a returned one.
func (w *Watcher) callGetter() (value any, err error) {
	if w.user {
		defer func() {
			if r := recover(); r != nil {
				value, err = nil, panicError(r)
			}
		}()
	}
	return w.getter()
}

// AddDep records d for the evaluation in progress and subscribes to it if
// the previous evaluation did not.
func (w *Watcher) AddDep(d *Dep) {
	id := d.id
	if w.newDepIDs.Contains(id) {
		return
	}
	w.newDepIDs.Add(id)
	w.newDeps = append(w.newDeps, d)
	if !w.depIDs.Contains(id) {
		d.AddSub(w)
	}
}

func (w *Watcher) cleanupDeps() {
	for i := len(w.deps) - 1; i >= 0; i-- {
		d := w.deps[i]
		if !w.newDepIDs.Contains(d.id) {
			d.RemoveSub(w)
		}
	}
	w.depIDs, w.newDepIDs = w.newDepIDs, w.depIDs
	w.newDepIDs.Clear()
	w.deps, w.newDeps = w.newDeps, w.deps
	clear(w.newDeps)
	w.newDeps = w.newDeps[:0]
}

// Update is called by a dep when it changes.
func (w *Watcher) Update() {
	switch {
	case w.lazy:
		w.dirty = true
	case w.sync:
		if err := w.Run(); err != nil {
			w.sys.HandleError(err, w, fmt.Sprintf("sync watcher %q", w.expression))
		}
	default:
		w.sys.queueWatcher(w)
	}
}

// Run re-evaluates the watcher and invokes the callback when the value
// changed. Object values and deep watchers always invoke it, since they
// may have been mutated in place.
func (w *Watcher) Run() error {
	if !w.active {
		return nil
	}
	value, err := w.Get()
	if err != nil {
		return err
	}
	if !strictEqual(value, w.value) || isObject(value) || w.deep {
		oldValue := w.value
		w.value = value
		if w.cb == nil {
			return nil
		}
		if w.user {
			info := fmt.Sprintf("callback for watcher %q", w.expression)
			w.sys.InvokeWithErrorHandling(func() error {
				return w.cb(value, oldValue)
			}, w, info)
			return nil
		}
		if err := w.cb(value, oldValue); err != nil {
			return &EvalError{WatcherID: w.id, Expression: w.expression, Err: err}
		}
	}
	return nil
}

// Evaluate computes the value of a lazy watcher and clears its dirty flag.
// On error the previous value is kept and the watcher stays dirty, so the
// next read tries again.
func (w *Watcher) Evaluate() error {
	v, err := w.Get()
	if err != nil {
		return err
	}
	w.value = v
	w.dirty = false
	return nil
}

// Depend makes the current target depend on everything w depends on.
func (w *Watcher) Depend() {
	for i := len(w.deps) - 1; i >= 0; i-- {
		w.deps[i].Depend()
	}
}

// Teardown unsubscribes w from all its deps. It is safe to call more than
// once.
func (w *Watcher) Teardown() {
	if !w.active {
		return
	}
	for i := len(w.deps) - 1; i >= 0; i-- {
		w.deps[i].RemoveSub(w)
	}
	w.active = false
	if w.onStop != nil {
		w.onStop()
	}
}
