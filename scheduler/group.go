// Package scheduler implements the task scheduler from spec §4.5-§4.6:
// per-pool priority queues and worker threads, and token-bounded
// mutual-exclusion group admission.
//
// Grounded on the original NUClear Internal/TaskScheduler.h/.cpp (a
// priority queue per "queue", a condition-variable-guarded worker loop)
// and the group-admission contract in
// original_source/src/dsl/fusion/GroupFusion.hpp, reworked per spec §4.6
// into an explicit waiter-list admission algorithm instead of C++'s
// compile-time group-set fusion.
package scheduler

import (
	"sort"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

// Lock is a registered request for one token of a Group. It is returned by
// Group.Acquire and must eventually be passed to Group.Release exactly
// once.
type Lock struct {
	taskID   reaction.TaskID
	priority int
	notify   func()
	granted  bool
}

// Granted reports whether this lock currently holds a token.
func (l *Lock) Granted() bool { return l.granted }

// Group is a token-bounded mutual-exclusion domain (spec §4.6). The zero
// value is not usable; construct with NewGroup.
type Group struct {
	descriptor *topology.GroupDescriptor

	mu      sync.Mutex
	waiters []*Lock // always kept sorted by (priority desc, taskID asc)
}

// NewGroup wraps a GroupDescriptor with admission state.
func NewGroup(d *topology.GroupDescriptor) *Group {
	return &Group{descriptor: d}
}

// Descriptor returns the underlying descriptor.
func (g *Group) Descriptor() *topology.GroupDescriptor { return g.descriptor }

// less implements the (priority desc, task_id asc) total order from spec
// §4.5/§4.6.
func less(aPriority int, aID reaction.TaskID, bPriority int, bID reaction.TaskID) bool {
	if aPriority != bPriority {
		return aPriority > bPriority
	}
	return aID < bID
}

// insertionIndex finds the sorted position for a new waiter.
func (g *Group) insertionIndex(priority int, taskID reaction.TaskID) int {
	return sort.Search(len(g.waiters), func(i int) bool {
		w := g.waiters[i]
		return !less(w.priority, w.taskID, priority, taskID)
	})
}

// Acquire registers a request for one token, immediately granting it if
// fewer than Concurrency locks in the group are currently held. A request
// that arrives while every token is held waits, even if it outranks a
// holder: holders are never displaced. notify is invoked later, from a different Release
// call, if the lock was not immediately grantable and later becomes so; it
// must not be called while holding any lock the caller already owns.
func (g *Group) Acquire(taskID reaction.TaskID, priority int, notify func()) *Lock {
	g.mu.Lock()
	defer g.mu.Unlock()

	l := &Lock{taskID: taskID, priority: priority, notify: notify}
	idx := g.insertionIndex(priority, taskID)
	g.waiters = slices.Insert(g.waiters, idx, l)

	held := 0
	for _, w := range g.waiters {
		if w.granted {
			held++
		}
	}
	if held < g.descriptor.Concurrency {
		l.granted = true
	}
	return l
}

// Release frees the token (if any) held by l and promotes newly-grantable
// waiters in priority order, invoking their notify callbacks after the
// group's internal lock is released.
func (g *Group) Release(l *Lock) {
	g.mu.Lock()

	idx := -1
	for i, w := range g.waiters {
		if w == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return
	}
	g.waiters = slices.Delete(g.waiters, idx, idx+1)

	var toNotify []func()
	if l.granted {
		toNotify = g.promote()
	}
	g.mu.Unlock()

	for _, fn := range toNotify {
		fn()
	}
}

// promote must be called with mu held. It walks the waiter list in
// priority order, granting tokens to any not-yet-granted waiter whose
// count of currently-held waiters ahead of it is below Concurrency, and
// collects their notify callbacks to be invoked after the lock is
// released (spec §4.6: "notifies exactly the locks that transition from
// not-grantable to grantable").
func (g *Group) promote() []func() {
	var toNotify []func()
	held := 0
	for _, w := range g.waiters {
		if w.granted {
			held++
			continue
		}
		if held < g.descriptor.Concurrency {
			w.granted = true
			held++
			if w.notify != nil {
				toNotify = append(toNotify, w.notify)
			}
		}
	}
	return toNotify
}

// Reprioritize changes the priority of a still-queued (not granted) lock
// and re-sorts it into the waiter list, then re-evaluates grants: per spec
// §4.6, "notifications re-fire only for waiters that newly became
// grantable." Reprioritizing an already-granted lock is a no-op: granted
// holders are never displaced.
func (g *Group) Reprioritize(l *Lock, newPriority int) {
	g.mu.Lock()

	if l.granted {
		g.mu.Unlock()
		return
	}

	idx := -1
	for i, w := range g.waiters {
		if w == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return
	}
	g.waiters = slices.Delete(g.waiters, idx, idx+1)
	l.priority = newPriority
	ins := g.insertionIndex(newPriority, l.taskID)
	g.waiters = slices.Insert(g.waiters, ins, l)

	toNotify := g.promote()
	g.mu.Unlock()

	for _, fn := range toNotify {
		fn()
	}
}

// Held returns the number of tokens currently granted, for diagnostics and
// tests.
func (g *Group) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, w := range g.waiters {
		if w.granted {
			n++
		}
	}
	return n
}
