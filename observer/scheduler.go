package observer

import (
	"errors"
	"fmt"
	"slices"
)

type scheduler struct {
	queue    []*Watcher
	has      map[uint64]bool
	circular map[uint64]int
	waiting  bool
	flushing bool
	index    int
}

func (q *scheduler) reset() {
	clear(q.queue)
	q.queue = q.queue[:0]
	q.index = 0
	q.has = map[uint64]bool{}
	q.circular = map[uint64]int{}
	q.waiting = false
	q.flushing = false
}

// queueWatcher pushes w into the queue. Watchers already queued are
// skipped unless they were pulled out while the queue is flushing.
func (s *System) queueWatcher(w *Watcher) {
	q := &s.sched
	id := w.id
	if q.has[id] {
		return
	}
	if w.noRecurse && s.target == Target(w) {
		return
	}
	q.has[id] = true

	if !q.flushing {
		q.queue = append(q.queue, w)
	} else {
		// already flushing: splice in by id, but never before the watcher
		// currently running
		i := len(q.queue) - 1
		for i > q.index && q.queue[i].id > id {
			i--
		}
		q.queue = slices.Insert(q.queue, i+1, w)
	}

	if q.waiting {
		return
	}
	q.waiting = true
	if !s.cfg.Async {
		if err := s.flushSchedulerQueue(); err != nil {
			s.HandleError(err, w, "scheduler flush")
		}
		return
	}
	s.NextTick(s.flushSchedulerQueue)
}

// Flush runs every queued watcher now instead of waiting for the next
// Tick.
func (s *System) Flush() error {
	if len(s.sched.queue) == 0 || s.sched.flushing {
		return nil
	}
	return s.flushSchedulerQueue()
}

// Queued returns the number of watchers waiting to run.
func (s *System) Queued() int {
	return len(s.sched.queue) - s.sched.index
}

func (s *System) flushSchedulerQueue() error {
	q := &s.sched
	q.flushing = true
	drained := false
	defer func() {
		// a panic escaped a watcher; start over with an empty queue
		if !drained {
			q.reset()
			s.cleanupDeps()
		}
	}()

	// Sorting ensures that:
	// 1. Watchers are updated from parent to child, since parents are
	//    created first.
	// 2. A component's user watchers run before its render watcher.
	// 3. If a component is destroyed during a parent's run, its watchers
	//    can be skipped.
	slices.SortFunc(q.queue, func(a, b *Watcher) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	var errs []error
	// the queue may grow while we run, so its length is read every pass
	for q.index = 0; q.index < len(q.queue); q.index++ {
		w := q.queue[q.index]
		if w.before != nil && w.active {
			w.before()
		}
		id := w.id
		delete(q.has, id)
		if err := w.Run(); err != nil {
			errs = append(errs, err)
		}
		if q.has[id] {
			q.circular[id]++
			if q.circular[id] > s.cfg.MaxUpdateCount {
				msg := "You may have an infinite update loop in a component render function."
				if w.user {
					msg = fmt.Sprintf("You may have an infinite update loop in watcher with expression %q", w.expression)
				}
				s.Warn(msg, "watcher", id, "count", q.circular[id])
				break
			}
		}
	}

	updated := slices.Clone(q.queue)
	q.reset()
	drained = true

	for i := len(updated) - 1; i >= 0; i-- {
		w := updated[i]
		if w.updated != nil && w.active {
			w.updated()
		}
	}
	s.cleanupDeps()
	return errors.Join(errs...)
}
