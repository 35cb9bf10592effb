// Package dsl implements the DSL composition/fusion layer from spec §4.1:
// a set of "words" (Trigger, With, Every, Last, Optional, Priority, Sync,
// Single, Pool, Group, IO/UDP/TCP, Network, Startup, Shutdown) that Fuse
// composes into the bind/get/precondition/priority/group/pool/pre_run/
// post_run/postcondition/reschedule hooks stored on a reaction.Reaction.
//
// Grounded on the design notes' own guidance (spec §9): "a runtime fusion
// that composes closures produces identical semantics" to the original's
// compile-time template metaprogramming. Each word is a plain Go value
// that opts into zero or more small hook interfaces, mirroring the
// teacher eventloop's preference for narrow, composable interfaces
// (EventTarget, Task) over one fat base class.
package dsl

import (
	"reflect"
	"sync"

	"github.com/nuclear-go/nuclear/chrono"
	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/store"
	"github.com/nuclear-go/nuclear/topology"
)

// Binder subscribes a word to whatever source feeds it (a store's
// TypeList, a chrono step) and returns an unbind closure, or nil if there
// is nothing to unsubscribe.
type Binder interface {
	Bind(ctx *BindContext, r *reaction.Reaction) func()
}

// Getter contributes one value to the task's captured-argument list, or
// reports a miss (spec §4.1 "get(task)").
type Getter interface {
	Get(t *reaction.Task) (any, bool)
}

// Preconditioner can veto task creation.
type Preconditioner interface {
	Precondition(t *reaction.Task) bool
}

// Prioritizer contributes a candidate priority; the fused priority is the
// maximum across all words that provide one.
type Prioritizer interface {
	Priority(t *reaction.Task) int
}

// Grouper contributes group descriptors the task must hold tokens in.
type Grouper interface {
	Groups(t *reaction.Task) []*topology.GroupDescriptor
}

// Pooler contributes the task's target pool. At most one word in a
// composition may implement this.
type Pooler interface {
	Pool(t *reaction.Task) *topology.PoolDescriptor
}

// PreRunner runs inside the worker immediately before the callback.
type PreRunner interface {
	PreRun(t *reaction.Task)
}

// PostRunner runs inside the worker immediately after the callback.
type PostRunner interface {
	PostRun(t *reaction.Task)
}

// Postconditioner observes task completion (e.g. to release a private
// Sync queue).
type Postconditioner interface {
	Postcondition(t *reaction.Task)
}

// Rescheduler may transform or swallow a produced task. The first word in
// declaration order that reports forward=false consumes the task.
type Rescheduler interface {
	Reschedule(t *reaction.Task) (*reaction.Task, bool)
}

// SingleMarker is implemented by the Single word to flag the reaction as
// at-most-one-in-flight.
type SingleMarker interface {
	IsSingle() bool
}

// TypeSubscriber is implemented by words bound to a specific message type
// (Trigger, With, Last, Network, and Optional wrapping one of these), used both to resolve their store
// and to detect statistics-consumer reactions for the cause-chain
// cycle-break rule (spec §4.10).
type TypeSubscriber interface {
	SubscribedType() reflect.Type
}

// BindContext carries the per-PowerPlant collaborators words need during
// Bind: the type-indexed stores, the chrono service, the cross-reactor
// Sync-tag registry, a callback for emitting values onto the bus (used by
// Every to feed fired steps back through the same LOCAL emit path ordinary
// user emits use), and the PowerPlant's configured default pool.
type BindContext struct {
	Stores      *store.Stores
	Chrono      *chrono.Service
	Registry    *Registry
	Emit        func(t reflect.Type, value any)
	DefaultPool *topology.PoolDescriptor
}

// Registry holds cross-reaction DSL state that must be shared by tag
// rather than recreated per reaction - currently just Sync's tag-to-group
// mapping. One Registry per PowerPlant (see design notes §9: "avoid
// process-wide statics; place stores on the powerplant instance").
type Registry struct {
	mu         sync.Mutex
	syncGroups map[reflect.Type]*topology.GroupDescriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{syncGroups: make(map[reflect.Type]*topology.GroupDescriptor)}
}

func (reg *Registry) syncGroupFor(tag reflect.Type) *topology.GroupDescriptor {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if g, ok := reg.syncGroups[tag]; ok {
		return g
	}
	g := topology.NewGroup("sync:"+tag.String(), 1)
	reg.syncGroups[tag] = g
	return g
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
