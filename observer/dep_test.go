package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	id  uint64
	log *[]uint64
}

func (r *recorder) ID() uint64 { return r.id }

func (r *recorder) AddDep(d *Dep) {
	d.AddSub(r)
}

func (r *recorder) Update() {
	*r.log = append(*r.log, r.id)
}

func TestDepIDsAreMonotonic(t *testing.T) {
	sys := NewSystem()
	a, b, c := sys.NewDep(), sys.NewDep(), sys.NewDep()
	assert.Less(t, a.ID(), b.ID())
	assert.Less(t, b.ID(), c.ID())
}

func TestDepDependRegistersCurrentTarget(t *testing.T) {
	sys := NewSystem()
	d := sys.NewDep()
	var log []uint64
	r := &recorder{id: 1, log: &log}

	d.Depend()
	assert.Empty(t, d.Subscribers(), "no target, nothing tracked")

	sys.PushTarget(r)
	d.Depend()
	sys.PopTarget()
	require.Len(t, d.Subscribers(), 1)

	sys.PushTarget(r)
	sys.PauseTracking()
	d.Depend()
	sys.ResumeTracking()
	sys.PopTarget()
	assert.Len(t, d.Subscribers(), 1)
	assert.Nil(t, sys.Target())
}

func TestDepRemoveSubTombstonesUntilCleanup(t *testing.T) {
	sys := NewSystem()
	d := sys.NewDep()
	var log []uint64
	r1 := &recorder{id: 1, log: &log}
	r2 := &recorder{id: 2, log: &log}
	r3 := &recorder{id: 3, log: &log}
	d.AddSub(r1)
	d.AddSub(r2)
	d.AddSub(r3)

	d.RemoveSub(r2)
	d.RemoveSub(r2)
	assert.Len(t, d.subs, 3, "slot is tombstoned, not spliced")
	assert.Nil(t, d.subs[1])
	assert.Equal(t, []Target{r1, r3}, d.Subscribers())
	assert.Len(t, sys.pendingCleanup, 1)

	d.Notify()
	assert.Equal(t, []uint64{1, 3}, log)

	sys.cleanupDeps()
	assert.Len(t, d.subs, 2)
	assert.False(t, d.pending)
	assert.Empty(t, sys.pendingCleanup)
}

func TestDepNotifyOrder(t *testing.T) {
	t.Run("async keeps insertion order", func(t *testing.T) {
		sys := NewSystem()
		d := sys.NewDep()
		var log []uint64
		for _, id := range []uint64{3, 1, 2} {
			d.AddSub(&recorder{id: id, log: &log})
		}
		d.Notify()
		assert.Equal(t, []uint64{3, 1, 2}, log)
	})

	t.Run("strict mode sorts by id", func(t *testing.T) {
		sys := NewSystem(WithConfig(Config{Async: false}))
		d := sys.NewDep()
		var log []uint64
		for _, id := range []uint64{3, 1, 2} {
			d.AddSub(&recorder{id: id, log: &log})
		}
		d.Notify()
		assert.Equal(t, []uint64{1, 2, 3}, log)
	})
}

func TestDepNotifySnapshotsSubscribers(t *testing.T) {
	sys := NewSystem()
	d := sys.NewDep()
	var log []uint64
	late := &recorder{id: 9, log: &log}
	first := &adder{recorder: recorder{id: 1, log: &log}, dep: d, add: late}
	d.AddSub(first)

	d.Notify()
	assert.Equal(t, []uint64{1}, log, "subscriber added during notify waits for the next one")

	log = nil
	first.add = nil
	d.Notify()
	assert.Equal(t, []uint64{1, 9}, log)
}

type adder struct {
	recorder
	dep *Dep
	add Target
}

func (a *adder) Update() {
	a.recorder.Update()
	if a.add != nil {
		a.dep.AddSub(a.add)
	}
}

func TestMockDepIsInert(t *testing.T) {
	sys := NewSystem()
	d := sys.mockDep()
	var log []uint64
	r := &recorder{id: 1, log: &log}
	sys.PushTarget(r)
	d.Depend()
	sys.PopTarget()
	d.AddSub(r)
	d.Notify()
	assert.Empty(t, d.Subscribers())
	assert.Empty(t, log)
}
