package dsl

import (
	"math"
	"reflect"
	"time"

	"github.com/nuclear-go/nuclear/chrono"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/store"
	"github.com/nuclear-go/nuclear/topology"
)

// Trigger subscribes to every LOCAL/INLINE emit of T and
// contributes T's captured value as one argument. Having at least one
// subscribing word (Trigger, Last, Network, Every, Startup, Shutdown) is
// what makes a reaction fire; With alone never does.
type Trigger[T any] struct {
	stores *store.Stores
	list   *store.TypeList
	latest *store.Latest
	key    any
}

func NewTrigger[T any]() *Trigger[T] { return &Trigger[T]{} }

func (w *Trigger[T]) SubscribedType() reflect.Type { return typeOf[T]() }

func (w *Trigger[T]) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	t := w.SubscribedType()
	w.stores = ctx.Stores
	w.latest = ctx.Stores.LatestFor(t)
	w.list = ctx.Stores.ListFor(t)
	w.key = r
	w.list.Append(w.key, r)
	return func() { w.list.Remove(w.key) }
}

func (w *Trigger[T]) Get(*reaction.Task) (any, bool) {
	return w.latest.Get()
}

// With contributes the latest cached value of U without subscribing to
// it - a reaction declaring only With words never fires on its own.
type With[T any] struct {
	latest *store.Latest
}

func NewWith[T any]() *With[T] { return &With[T]{} }

func (w *With[T]) SubscribedType() reflect.Type { return typeOf[T]() }

func (w *With[T]) Bind(ctx *BindContext, _ *reaction.Reaction) func() {
	w.latest = ctx.Stores.LatestFor(w.SubscribedType())
	return nil
}

func (w *With[T]) Get(*reaction.Task) (any, bool) {
	return w.latest.Get()
}

// Last subscribes to every emit of T like Trigger, but contributes the N
// most-recent values (newest first) instead of just the latest one.
type Last[T any] struct {
	n       int
	history *store.History
	list    *store.TypeList
	key     any
}

func NewLast[T any](n int) *Last[T] { return &Last[T]{n: n} }

func (w *Last[T]) SubscribedType() reflect.Type { return typeOf[T]() }

func (w *Last[T]) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	t := w.SubscribedType()
	w.history = ctx.Stores.HistoryFor(t, w.n)
	w.list = ctx.Stores.ListFor(t)
	w.key = r
	w.list.Append(w.key, r)
	return func() { w.list.Remove(w.key) }
}

func (w *Last[T]) Get(*reaction.Task) (any, bool) {
	// An empty history is still "present" data (spec: depth is a maximum,
	// not a minimum); only a wholly absent non-optional source misses.
	vals := w.history.Slice()
	if len(vals) > w.n {
		vals = vals[:w.n]
	}
	return vals, true
}

// Optional wraps another word, turning a missing-data result from its Get
// into a present-but-empty one, so the overall reaction's Get never
// rejects a task solely because the wrapped source is absent. Bind and
// SubscribedType still delegate, so an Optional[Trigger[T]] still
// subscribes and participates in the statistics-exempt type check.
type Optional struct {
	Inner any
}

func NewOptional(inner any) *Optional { return &Optional{Inner: inner} }

func (w *Optional) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	if b, ok := w.Inner.(Binder); ok {
		return b.Bind(ctx, r)
	}
	return nil
}

func (w *Optional) Get(t *reaction.Task) (any, bool) {
	if g, ok := w.Inner.(Getter); ok {
		v, _ := g.Get(t)
		return v, true
	}
	return nil, true
}

func (w *Optional) SubscribedType() reflect.Type {
	if ts, ok := w.Inner.(TypeSubscriber); ok {
		return ts.SubscribedType()
	}
	return nil
}

// Priority levels matching spec §9's simplification of REALTIME to "max
// integer priority, no spawn-on-demand".
const (
	PriorityLow      = -100
	PriorityNormal   = 0
	PriorityHigh     = 100
	PriorityRealtime = math.MaxInt32
)

type priorityWord struct{ level int }

// Priority fixes the reaction's priority to level, overriding the default
// NORMAL (fusion takes the maximum across all Priority words present).
func Priority(level int) *priorityWord { return &priorityWord{level: level} }

func (w *priorityWord) Priority(*reaction.Task) int { return w.level }

type singleWord struct{}

// Single marks the reaction as at-most-one-in-flight (spec §3 "single").
func Single() *singleWord { return &singleWord{} }

func (w *singleWord) IsSingle() bool { return true }

type poolWord struct{ d *topology.PoolDescriptor }

// Pool fixes the reaction's target pool.
func Pool(d *topology.PoolDescriptor) *poolWord { return &poolWord{d: d} }

func (w *poolWord) Pool(*reaction.Task) *topology.PoolDescriptor { return w.d }

type groupWord struct{ d *topology.GroupDescriptor }

// Group adds a group the reaction's tasks must hold a token in.
func Group(d *topology.GroupDescriptor) *groupWord { return &groupWord{d: d} }

func (w *groupWord) Groups(*reaction.Task) []*topology.GroupDescriptor {
	return []*topology.GroupDescriptor{w.d}
}

type syncWord struct {
	tag   reflect.Type
	group *topology.GroupDescriptor
}

// Sync constrains every reaction sharing the same Tag type to run one at a
// time, regardless of which pool each is declared on; waiting tasks are
// admitted in (priority desc, task_id asc) order -
// implemented as a single-token Group keyed by Tag (spec calls this out as
// a distinct word, but its admission semantics are exactly Group(1)).
func Sync[Tag any]() *syncWord { return &syncWord{tag: typeOf[Tag]()} }

func (w *syncWord) Bind(ctx *BindContext, _ *reaction.Reaction) func() {
	w.group = ctx.Registry.syncGroupFor(w.tag)
	return nil
}

func (w *syncWord) Groups(*reaction.Task) []*topology.GroupDescriptor {
	return []*topology.GroupDescriptor{w.group}
}

// Startup subscribes the reaction to the one-time message.Startup event
// fired during the PowerPlant's Starting→Running transition.
type startupWord struct {
	list *store.TypeList
	key  any
}

func Startup() *startupWord { return &startupWord{} }

func (w *startupWord) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	w.list = ctx.Stores.ListFor(reflect.TypeOf(message.Startup{}))
	w.key = r
	w.list.Append(w.key, r)
	return func() { w.list.Remove(w.key) }
}

func (w *startupWord) Get(*reaction.Task) (any, bool) { return message.Startup{}, true }

// Shutdown subscribes the reaction to the one-time message.Shutdown event
// fired when the PowerPlant begins draining.
type shutdownWord struct {
	list *store.TypeList
	key  any
}

func Shutdown() *shutdownWord { return &shutdownWord{} }

func (w *shutdownWord) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	w.list = ctx.Stores.ListFor(reflect.TypeOf(message.Shutdown{}))
	w.key = r
	w.list.Append(w.key, r)
	return func() { w.list.Remove(w.key) }
}

func (w *shutdownWord) Get(*reaction.Task) (any, bool) { return message.Shutdown{}, true }

var everyMessageType = reflect.TypeOf(message.Every{})

// Every registers a chrono step firing every period, delivered through the
// ordinary LOCAL emit pipeline as a message.Every (spec: "Chrono
// periodically emits time messages into the same emit pipeline"). Since
// every period shares the one message.Every type, Precondition filters out
// fires belonging to a different period's reaction.
type everyWord struct {
	period time.Duration
	stores *store.Stores
	svc    *chrono.Service
	emit   func(reflect.Type, any)
	list   *store.TypeList
	key    any
}

func Every(period time.Duration) *everyWord { return &everyWord{period: period} }

func (w *everyWord) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	w.stores = ctx.Stores
	w.svc = ctx.Chrono
	w.emit = ctx.Emit
	w.list = ctx.Stores.ListFor(everyMessageType)
	w.key = r
	w.list.Append(w.key, r)

	if w.svc != nil {
		key := chrono.Key{Period: w.period, MessageType: everyMessageType}
		period := w.period
		emit := w.emit
		w.svc.Register(key, period, func(fireTime time.Time) {
			if emit != nil {
				emit(everyMessageType, message.Every{Period: period, FireTime: fireTime})
			}
		})
	}

	return func() { w.list.Remove(w.key) }
}

func (w *everyWord) Get(*reaction.Task) (any, bool) {
	return w.stores.LatestFor(everyMessageType).Get()
}

func (w *everyWord) Precondition(*reaction.Task) bool {
	v, ok := w.stores.LatestFor(everyMessageType).Get()
	if !ok {
		return false
	}
	ev, ok := v.(message.Every)
	return ok && ev.Period == w.period
}

// NetworkOptions carries the wire-delivery contract fields the original
// CommandTypes.h's NetworkEmit struct exposes. The actual transport is out
// of scope (spec §1 non-goal); these fields are retained as an inert
// contract shape per SPEC_FULL.md §6.
type NetworkOptions struct {
	Target   string
	Reliable bool
}

// Network subscribes like Trigger, but documents that T is (conceptually)
// delivered across process boundaries. There is no transport: a
// NETWORK-scope emit only logs a debug message and reaches no subscriber,
// so Network[T] reactions fire on LOCAL and INLINE emits of T.
type Network[T any] struct {
	Options NetworkOptions
	latest  *store.Latest
	list    *store.TypeList
	key     any
}

func NewNetwork[T any](opts NetworkOptions) *Network[T] {
	return &Network[T]{Options: opts}
}

func (w *Network[T]) SubscribedType() reflect.Type { return typeOf[T]() }

func (w *Network[T]) Bind(ctx *BindContext, r *reaction.Reaction) func() {
	t := w.SubscribedType()
	w.latest = ctx.Stores.LatestFor(t)
	w.list = ctx.Stores.ListFor(t)
	w.key = r
	w.list.Append(w.key, r)
	return func() { w.list.Remove(w.key) }
}

func (w *Network[T]) Get(*reaction.Task) (any, bool) {
	return w.latest.Get()
}

// IOEventMask names the readiness conditions an IO word watches for.
type IOEventMask int

const (
	IORead IOEventMask = 1 << iota
	IOWrite
)

// IOOptions configures an IO/UDP/TCP word. FD and Events describe the
// contract an external poller would watch; no poller is implemented here
// (spec §1 non-goal: "platform socket... shims").
type IOOptions struct {
	FD     int
	Events IOEventMask
}

type ioWord struct{ opts IOOptions }

// IO is a contract-only placeholder for file-descriptor readiness
// reactions. Binding it registers nothing, since no OS-level poller is
// part of this runtime; see DESIGN.md.
func IO(opts IOOptions) *ioWord { return &ioWord{opts: opts} }

func (w *ioWord) Bind(*BindContext, *reaction.Reaction) func() { return nil }

type udpWord struct{ addr string }

// UDP is a contract-only placeholder mirroring IO for UDP sockets.
func UDP(addr string) *udpWord { return &udpWord{addr: addr} }

func (w *udpWord) Bind(*BindContext, *reaction.Reaction) func() { return nil }

type tcpWord struct{ addr string }

// TCP is a contract-only placeholder mirroring IO for TCP sockets.
func TCP(addr string) *tcpWord { return &tcpWord{addr: addr} }

func (w *tcpWord) Bind(*BindContext, *reaction.Reaction) func() { return nil }

// On0 adapts a zero-argument typed callback into the signature Fuse's
// Callback expects. fn receives the reaction.Task that produced this
// invocation, so it can derive a Cause for anything it emits (spec §2).
func On0(fn func(t *reaction.Task) error) func(*reaction.Task, []any) error {
	return func(t *reaction.Task, _ []any) error { return fn(t) }
}

// On1 adapts a one-argument typed callback. If the reaction produced fewer
// or mistyped arguments (a programming error in the word composition,
// since Fuse guarantees one slot per Getter), the zero value is passed.
func On1[A any](fn func(t *reaction.Task, a A) error) func(*reaction.Task, []any) error {
	return func(t *reaction.Task, args []any) error {
		var a A
		if len(args) > 0 {
			a, _ = args[0].(A)
		}
		return fn(t, a)
	}
}

// On2 adapts a two-argument typed callback.
func On2[A, B any](fn func(t *reaction.Task, a A, b B) error) func(*reaction.Task, []any) error {
	return func(t *reaction.Task, args []any) error {
		var a A
		var b B
		if len(args) > 0 {
			a, _ = args[0].(A)
		}
		if len(args) > 1 {
			b, _ = args[1].(B)
		}
		return fn(t, a, b)
	}
}

// On3 adapts a three-argument typed callback.
func On3[A, B, C any](fn func(t *reaction.Task, a A, b B, c C) error) func(*reaction.Task, []any) error {
	return func(t *reaction.Task, args []any) error {
		var a A
		var b B
		var c C
		if len(args) > 0 {
			a, _ = args[0].(A)
		}
		if len(args) > 1 {
			b, _ = args[1].(B)
		}
		if len(args) > 2 {
			c, _ = args[2].(C)
		}
		return fn(t, a, b, c)
	}
}
