package observer

import "slices"

// Target is anything that can subscribe to a Dep. *Watcher is the only
// implementation in this module; tests and renderers may provide their own.
type Target interface {
	ID() uint64
	AddDep(d *Dep)
	Update()
}

// Tracer receives debug events when Config.Dev is set.
type Tracer interface {
	OnTrack(e DebugEvent)
	OnTrigger(e DebugEvent)
}

type OpType string

const (
	OpGet           OpType = "get"
	OpSet           OpType = "set"
	OpAdd           OpType = "add"
	OpDelete        OpType = "delete"
	OpArrayMutation OpType = "array mutation"
)

type DebugEvent struct {
	Effect   Target
	Target   any
	Type     OpType
	Key      any
	NewValue any
	OldValue any
}

// Dep is a publisher owned by a reactive property or an observed
// container. Subscribers are kept in insertion order; removal leaves a nil
// tombstone that is compacted after the next scheduler flush.
type Dep struct {
	sys     *System
	id      uint64
	subs    []Target
	pending bool
	mock    bool
}

func (s *System) NewDep() *Dep {
	return &Dep{sys: s, id: s.nextDepID()}
}

// mockDep never tracks or notifies.
func (s *System) mockDep() *Dep {
	return &Dep{sys: s, id: s.nextDepID(), mock: true}
}

func (d *Dep) ID() uint64 {
	return d.id
}

// Subscribers returns the live subscribers in insertion order.
func (d *Dep) Subscribers() []Target {
	out := make([]Target, 0, len(d.subs))
	for _, sub := range d.subs {
		if sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

func (d *Dep) AddSub(sub Target) {
	if d.mock {
		return
	}
	d.subs = append(d.subs, sub)
}

// RemoveSub tombstones sub's slot instead of shrinking the slice, so deps
// with many subscribers stay O(1) under churn.
func (d *Dep) RemoveSub(sub Target) {
	if d.mock {
		return
	}
	i := slices.Index(d.subs, sub)
	if i < 0 {
		return
	}
	d.subs[i] = nil
	if !d.pending {
		d.pending = true
		d.sys.scheduleCleanup(d)
	}
}

func (d *Dep) compact() {
	d.subs = slices.DeleteFunc(d.subs, func(t Target) bool { return t == nil })
	d.pending = false
}

// Depend registers d with the current target, if any.
func (d *Dep) Depend() {
	if d.mock {
		return
	}
	if t := d.sys.target; t != nil {
		t.AddDep(d)
	}
}

// DependInfo is Depend with a track event for Tracer targets.
func (d *Dep) DependInfo(info DebugEvent) {
	if d.mock {
		return
	}
	t := d.sys.target
	if t == nil {
		return
	}
	t.AddDep(d)
	if tr, ok := t.(Tracer); ok && d.sys.cfg.Dev {
		info.Effect = t
		tr.OnTrack(info)
	}
}

func (d *Dep) Notify() {
	d.notify(nil)
}

// NotifyInfo is Notify with a trigger event for Tracer subscribers.
func (d *Dep) NotifyInfo(info DebugEvent) {
	d.notify(&info)
}

func (d *Dep) notify(info *DebugEvent) {
	if d.mock {
		return
	}
	// snapshot so subscribers added or removed while notifying wait for the
	// next change
	subs := d.Subscribers()
	if !d.sys.cfg.Async {
		// the scheduler does not sort when flushing synchronously
		slices.SortFunc(subs, func(a, b Target) int {
			switch {
			case a.ID() < b.ID():
				return -1
			case a.ID() > b.ID():
				return 1
			}
			return 0
		})
	}
	for _, sub := range subs {
		if info != nil && d.sys.cfg.Dev {
			if tr, ok := sub.(Tracer); ok {
				e := *info
				e.Effect = sub
				tr.OnTrigger(e)
			}
		}
		sub.Update()
	}
}
