// Package nuclear implements the NUClear-style reactive concurrency
// runtime described across the component packages: reactors declare
// reactions via the dsl package's word composition, the scheduler runs
// them across named pools and groups, chrono drives periodic reactions
// off the simulated clock, and stats/tracing observes the whole thing.
//
// PowerPlant is the process-wide root object (spec §6): it owns the
// stores, scheduler, chrono service and simulated clock, accepts installed
// reactors, and drives the Constructed -> Starting -> Running -> Draining
// -> Terminated lifecycle (spec §4.9).
package nuclear

import (
	"fmt"
	"os"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/nuclear-go/nuclear/chrono"
	"github.com/nuclear-go/nuclear/clock"
	"github.com/nuclear-go/nuclear/dsl"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/scheduler"
	"github.com/nuclear-go/nuclear/stats"
	"github.com/nuclear-go/nuclear/store"
	"github.com/nuclear-go/nuclear/topology"
)

// traceDescriptor is the persistent, single-concurrency pool the trace
// reactor runs in (spec §4.10).
var traceDescriptor = topology.NewPool("trace", 1, false, true)

type lifecycleState uint32

const (
	stateConstructed lifecycleState = iota
	stateStarting
	stateRunning
	stateDraining
	stateTerminated
)

// PowerPlant is the single root object per process (spec §4.9: "Exactly
// one powerplant per process").
type PowerPlant struct {
	cfg         *config
	stores      *store.Stores
	sched       *scheduler.Scheduler
	chronoSvc   *chrono.Service
	clock       *clock.Clock
	registry    *dsl.Registry
	statSink    reaction.StatSink
	defaultPool *topology.PoolDescriptor

	state atomic.Uint32

	mu       sync.Mutex
	reactors []*reaction.Reaction

	initMu    sync.Mutex
	initQueue []func()
}

// New constructs a PowerPlant in the Constructed state (spec §4.9), ready
// to accept Install calls. Pools named via WithPool are created eagerly so
// reactions can reference them by descriptor before any reaction using
// them is installed.
func New(opts ...Option) (*PowerPlant, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	pp := &PowerPlant{
		cfg:      cfg,
		stores:   store.New(),
		clock:    clock.New(),
		registry: dsl.NewRegistry(),
	}
	pp.chronoSvc = chrono.New(pp.clock)
	pp.sched = scheduler.New(func() {
		// spec §4.5: "a transition to all watched pools idle emits an Idle
		// event" - system-wide, so no single pool id is meaningful here.
		pp.emitLocal(reflect.TypeOf(message.Idle{}), message.Idle{})
	})

	// The default pool backs every reaction that declares no Pool word
	// (spec §5: "a reaction's pool is fixed at declaration, defaulting to
	// a shared 'default' pool"; spec §6: default_pool_concurrency must
	// have runtime effect). Concurrency zero, per
	// WithDefaultPoolConcurrency's documented "main-thread only" meaning,
	// folds the default pool onto the existing main pool rather than
	// creating a second zero-worker pool nothing would ever drain.
	if cfg.defaultPoolConcurrency == 0 {
		pp.defaultPool = topology.MainPool
	} else {
		pp.defaultPool = topology.NewPool("default", cfg.defaultPoolConcurrency, true, false)
		pp.sched.PoolFor(pp.defaultPool)
	}

	for _, d := range cfg.pools {
		pp.sched.PoolFor(d)
	}
	pp.statSink = stats.NewSink(pp.emitLocal)
	pp.state.Store(uint32(stateConstructed))

	if cfg.traceWriter != nil {
		if err := pp.installTraceReactor(); err != nil {
			return nil, err
		}
	}
	return pp, nil
}

// installTraceReactor wires the built-in trace reactor from spec §4.10:
// "a separate trace reactor that subscribes to statistics events... runs
// in a persistent single-thread pool so that trace records emitted during
// shutdown are captured."
func (p *PowerPlant) installTraceReactor() error {
	enc, err := stats.NewEncoder(p.cfg.traceWriter)
	if err != nil {
		return fmt.Errorf("nuclear: install trace reactor: %w", err)
	}
	tr := stats.NewReactor(enc)
	tracePool := p.sched.PoolFor(traceDescriptor)

	ctx := &dsl.BindContext{Stores: p.stores, Chrono: p.chronoSvc, Registry: p.registry, Emit: p.emitLocal, DefaultPool: p.defaultPool}
	words := []any{dsl.NewTrigger[message.Statistics](), dsl.Pool(tracePool.Descriptor())}
	rx, err := dsl.Fuse(ctx, "Trace", "HandleStatistics", words,
		dsl.On1(func(_ *reaction.Task, ev message.Statistics) error {
			if err := tr.HandleStatistics(ev); err != nil {
				return err
			}
			return enc.Flush()
		}))
	if err != nil {
		return fmt.Errorf("nuclear: install trace reactor: %w", err)
	}
	p.registerReaction(rx)
	return nil
}

func (p *PowerPlant) registerReaction(r *reaction.Reaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reactors = append(p.reactors, r)
}

// reactorBase is satisfied by any *R whose R embeds Reactor: init is
// promoted from the embedded field, so application reactor types never
// implement it themselves.
type reactorBase interface {
	init(pp *PowerPlant, name string)
}

// Installable is implemented by every application reactor: Install
// declares its reactions via (*Reactor).Bind, returning the first bind-time
// error encountered (spec §7: "bind-time errors propagate to the caller of
// install").
type Installable interface {
	reactorBase
	Install() error
}

// Install constructs and binds a reactor (spec §6: "install<Reactor>() —
// construct and bind"). r must embed Reactor (or *Reactor) and implement
// Install(). Only valid while the PowerPlant is Constructed.
func Install[R Installable](p *PowerPlant, r R) (R, error) {
	var zero R
	if lifecycleState(p.state.Load()) != stateConstructed {
		return zero, fmt.Errorf("nuclear: install: PowerPlant must be Constructed, not %v", lifecycleState(p.state.Load()))
	}
	r.init(p, displayNameFor(r))
	if err := r.Install(); err != nil {
		return zero, err
	}
	return r, nil
}

func (s lifecycleState) String() string {
	switch s {
	case stateConstructed:
		return "Constructed"
	case stateStarting:
		return "Starting"
	case stateRunning:
		return "Running"
	case stateDraining:
		return "Draining"
	case stateTerminated:
		return "Terminated"
	default:
		return "unknown"
	}
}

// State reports the PowerPlant's current lifecycle state.
func (p *PowerPlant) State() string { return lifecycleState(p.state.Load()).String() }

// Clock returns the simulated clock driving chrono (spec §4.8), exposed so
// tests can call AdjustClock/SetClock to fast-forward Every<d> reactions.
func (p *PowerPlant) Clock() *clock.Clock { return p.clock }

// Start transitions Constructed -> Starting -> Running, blocks the calling
// goroutine as the main-pool worker, and returns once Shutdown has fully
// drained the runtime (spec §4.9, §6: "start() — blocks the caller as the
// main-pool thread; returns after shutdown completes"). argv defaults to
// os.Args[1:] if omitted.
func (p *PowerPlant) Start(argv ...string) error {
	if !p.state.CompareAndSwap(uint32(stateConstructed), uint32(stateStarting)) {
		return fmt.Errorf("nuclear: Start: PowerPlant must be Constructed, not %v", lifecycleState(p.state.Load()))
	}
	if argv == nil {
		argv = os.Args[1:]
	}

	p.emitLocal(reflect.TypeOf(message.CommandLineArguments{}), message.CommandLineArguments{Argv: argv})
	p.chronoSvc.Start()
	p.flushInitialize()
	p.emitLocal(reflect.TypeOf(message.Startup{}), message.Startup{})
	p.state.Store(uint32(stateRunning))

	p.sched.MainPool().RunMain()

	// Draining: non-persistent pools join here (spec §4.9); the main pool
	// already joined by RunMain returning above.
	p.sched.WaitDrained()

	// Terminated: destroy pools, stores, chrono; persistent pools (e.g.
	// the trace reactor's pool) join last so late statistics are captured.
	p.chronoSvc.Stop()
	p.sched.Terminate()
	p.stores.Reset()
	p.state.Store(uint32(stateTerminated))
	return nil
}

// Shutdown triggers the Draining transition (spec §4.9): emits Shutdown,
// then flips the scheduler to draining so non-persistent pools stop
// accepting work and join once their queues empty. Idempotent - a second
// call while already Draining or Terminated is a no-op.
func (p *PowerPlant) Shutdown() {
	if !p.state.CompareAndSwap(uint32(stateRunning), uint32(stateDraining)) {
		return
	}
	p.emitLocal(reflect.TypeOf(message.Shutdown{}), message.Shutdown{})
	p.sched.Shutdown()
}
