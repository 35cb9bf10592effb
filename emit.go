package nuclear

import (
	"reflect"
	"sync"
	"time"

	"github.com/nuclear-go/nuclear/chrono"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

// Scope selects one of the six emit pipelines from spec §4.4/§6.
type Scope int

const (
	// Local writes the value into stores and submits a task per subscriber
	// to the scheduler. This is the default scope.
	Local Scope = iota
	// Inline is Local, but every subscriber's task runs synchronously on
	// the calling goroutine before Emit returns. Cause identity is
	// preserved exactly as for Local.
	Inline
	// Initialize holds the value in a startup queue, flushed as Local in
	// submission order once the PowerPlant transitions Starting -> Running.
	Initialize
	// Delay schedules a Local emission after a duration has elapsed on the
	// simulated clock, via the chrono service.
	Delay
	// At schedules a Local emission at a specific simulated time, via the
	// chrono service.
	At
	// Network has no transport: the value is not delivered anywhere, and
	// the emit only logs a debug message naming the target. Only the
	// target/reliability contract shape is retained (SPEC_FULL.md §6 item 6).
	Network
)

func (s Scope) String() string {
	switch s {
	case Local:
		return "local"
	case Inline:
		return "inline"
	case Initialize:
		return "initialize"
	case Delay:
		return "delay"
	case At:
		return "at"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// NetworkTarget carries the optional target name and reliability flag a
// Network-scope emit may declare, mirroring original_source's NetworkEmit
// struct fields (SPEC_FULL.md §6 item 6).
type NetworkTarget struct {
	Name     string
	Reliable bool
}

// emitParams collects the scope-specific arguments a call to Emit may
// carry - the duration for Delay, the instant for At, the target for
// Network. Exactly one of these is meaningful for any given scope; the
// others are ignored.
type emitParams struct {
	after  time.Duration
	at     time.Time
	target NetworkTarget
}

// EmitTarget supplies the scope-specific argument to a PowerPlant.Emit
// call (spec §6: "emit<Scope>(value, …targets)").
type EmitTarget interface {
	apply(*emitParams)
}

type emitTargetFunc func(*emitParams)

func (f emitTargetFunc) apply(p *emitParams) { f(p) }

// After supplies the duration for a Delay-scope emit.
func After(d time.Duration) EmitTarget {
	return emitTargetFunc(func(p *emitParams) { p.after = d })
}

// AtTime supplies the instant for an At-scope emit.
func AtTime(t time.Time) EmitTarget {
	return emitTargetFunc(func(p *emitParams) { p.at = t })
}

// ToNetwork supplies the target/reliability pair for a Network-scope emit.
func ToNetwork(target NetworkTarget) EmitTarget {
	return emitTargetFunc(func(p *emitParams) { p.target = target })
}

// Emit is the application-surface entry point for producing data (spec
// §6), used when there is no currently-running task to derive a cause
// from - e.g. a call from the goroutine that invoked Start, or from a
// reactor's own initialization code. Reactor callbacks that want the
// resulting tasks' Cause to name the callback that's running should call
// (*Reactor).EmitFrom instead, which threads the task through.
func (p *PowerPlant) Emit(scope Scope, value any, targets ...EmitTarget) {
	p.emitFrom(nil, scope, value, targets...)
}

func (p *PowerPlant) emitFrom(cause *reaction.Task, scope Scope, value any, targets ...EmitTarget) {
	t := reflect.TypeOf(value)

	var params emitParams
	for _, tg := range targets {
		if tg != nil {
			tg.apply(&params)
		}
	}

	switch scope {
	case Local:
		p.emitLocalFrom(cause, t, value)
	case Inline:
		p.emitInlineFrom(cause, t, value)
	case Initialize:
		p.queueInitialize(t, value)
	case Delay:
		p.scheduleChrono(t, value, params.after)
	case At:
		p.scheduleChronoAt(t, value, params.at)
	case Network:
		p.logMessage("PowerPlant", message.LogDebug, "network emit is a contract-only stub; "+params.target.Name+" was not sent")
	}
}

// emitLocal is the cause-free convenience log.go uses to publish
// message.LogMessage.
func (p *PowerPlant) emitLocal(t reflect.Type, value any) {
	p.emitLocalFrom(nil, t, value)
}

// emitLocalFrom implements spec §4.4's LOCAL scope: write the value into
// the Latest cell (and any bound History ring), then for each subscriber
// in the type's TypeList, evaluate get() now and submit the resulting task.
func (p *PowerPlant) emitLocalFrom(cause *reaction.Task, t reflect.Type, value any) {
	p.stores.LatestFor(t).Set(value)
	if h, ok := p.stores.HistoryIfPresent(t); ok {
		h.Push(value)
	}

	for _, sub := range p.stores.ListFor(t).Snapshot() {
		r, ok := sub.Value.(*reaction.Reaction)
		if !ok {
			continue
		}
		task, ok := r.NewTask(cause)
		if !ok {
			continue
		}
		p.sched.Submit(task)
	}
}

// emitInlineFrom implements spec §4.4's INLINE scope: each subscriber's
// task runs synchronously, on this goroutine, before Emit returns.
func (p *PowerPlant) emitInlineFrom(cause *reaction.Task, t reflect.Type, value any) {
	p.stores.LatestFor(t).Set(value)
	if h, ok := p.stores.HistoryIfPresent(t); ok {
		h.Push(value)
	}

	ctx := reaction.NewWorkerContext()
	for _, sub := range p.stores.ListFor(t).Snapshot() {
		r, ok := sub.Value.(*reaction.Reaction)
		if !ok {
			continue
		}
		task, ok := r.NewTask(cause)
		if !ok {
			continue
		}
		task.RunOn(ctx, 0)
	}
}

// queueInitialize implements spec §4.4's INITIALIZE scope: held until the
// PowerPlant transitions Starting -> Running, then flushed as LOCAL in
// submission order (spec §4.9 Starting: "flush INITIALIZE queue as LOCAL
// emits").
func (p *PowerPlant) queueInitialize(t reflect.Type, value any) {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	p.initQueue = append(p.initQueue, func() { p.emitLocalFrom(nil, t, value) })
}

func (p *PowerPlant) flushInitialize() {
	p.initMu.Lock()
	queued := p.initQueue
	p.initQueue = nil
	p.initMu.Unlock()

	for _, fn := range queued {
		fn()
	}
}

// scheduleChrono implements spec §4.4's DELAY(d) scope: a one-shot
// chrono-driven LOCAL emission after duration d has elapsed on the
// simulated clock.
//
// The chrono wheel (spec §4.7) only models repeating steps; there is no
// cancellation primitive. Each call here gets its own wheel entry (keyed
// by a fresh token, never deduped against another Delay/At call) and the
// fired-once guard below makes repeat ticks of that entry no-ops, so the
// emitted value is still observed exactly once even though the
// underlying step keeps occupying a heap slot for the PowerPlant's life.
func (p *PowerPlant) scheduleChrono(t reflect.Type, value any, d time.Duration) {
	if d < 0 {
		d = 0
	}
	var fired sync.Once
	key := chrono.Key{Period: d, MessageType: new(struct{})}
	p.chronoSvc.Register(key, d, func(time.Time) {
		fired.Do(func() { p.emitLocalFrom(nil, t, value) })
	})
}

// scheduleChronoAt implements spec §4.4's AT(t) scope, expressed as a
// delay relative to the simulated clock's current reading at the moment
// the call is made.
func (p *PowerPlant) scheduleChronoAt(t reflect.Type, value any, at time.Time) {
	d := at.Sub(p.clock.Now())
	p.scheduleChrono(t, value, d)
}
