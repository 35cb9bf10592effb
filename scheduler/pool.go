package scheduler

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

// pendingAdmission tracks a task waiting on one or more group tokens. Every
// lock is registered with its group at once (spec §4.6: "Group membership
// is acquired in a total order (by group id ascending) to avoid deadlock
// across multi-group tasks"); the task becomes runnable only once every
// lock reports grantable, whether that happens synchronously at
// registration or later via a release notification.
type pendingAdmission struct {
	task      *reaction.Task
	locks     []*Lock
	groups    []*Group
	remaining atomic.Int32
	pool      *Pool
	once      sync.Once
}

func (p *pendingAdmission) onGranted() {
	if p.remaining.Add(-1) == 0 {
		p.pool.admit(p)
	}
}

func (p *pendingAdmission) release() {
	p.once.Do(func() {
		for i, g := range p.groups {
			g.Release(p.locks[i])
		}
	})
}

// Pool is a named set of worker goroutines serving one priority queue
// (spec §4.5). Concurrency zero means the pool has no dedicated workers;
// it is served by whatever goroutine calls Pool.RunMain (the main-thread
// affinity pool).
type Pool struct {
	descriptor *topology.PoolDescriptor
	resolve    func(*topology.GroupDescriptor) *Group

	mu        sync.Mutex
	cond      *sync.Cond
	queue     *priorityQueue
	ready     []*pendingAdmission // tasks whose group tokens are all granted, awaiting a worker
	draining  bool
	terminate bool
	running   int // count of tasks currently executing
	awaiting  int // tasks popped from queue, waiting on group tokens not yet granted

	mainThreadID int // set by RunMain; see MainThreadID

	wg sync.WaitGroup

	// onIdle is invoked (outside the pool's lock) whenever the pool
	// transitions from busy to idle: no running tasks and nothing queued.
	onIdle func()
}

// NewPool creates a Pool and spins up its worker goroutines (if
// Concurrency > 0). groupResolver maps a task's group descriptors to their
// shared Group admission state, owned by the top-level Scheduler.
func NewPool(d *topology.PoolDescriptor, groupResolver func(*topology.GroupDescriptor) *Group, onIdle func()) *Pool {
	p := &Pool{
		descriptor: d,
		resolve:    groupResolver,
		queue:      newPriorityQueue(),
		onIdle:     onIdle,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < d.Concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// Descriptor returns the pool's descriptor.
func (p *Pool) Descriptor() *topology.PoolDescriptor { return p.descriptor }

// Submit enqueues t. Returns false (and does not enqueue) if the pool is
// draining and not persistent, or already terminated (spec §7
// SchedulerShuttingDown: "silently dropped, counted in stats" - the caller
// is responsible for counting the drop).
func (p *Pool) Submit(t *reaction.Task) bool {
	p.mu.Lock()
	if p.terminate || (p.draining && !p.descriptor.Persistent) {
		p.mu.Unlock()
		return false
	}
	p.queue.push(t)
	p.mu.Unlock()
	p.cond.Broadcast()
	return true
}

// attemptAdmission must be called without p.mu held. It registers the
// task's group locks (if any) and returns (nil, true) if it is immediately
// runnable, or (pa, false) if it must wait on at least one token.
func (p *Pool) attemptAdmission(t *reaction.Task) (*pendingAdmission, bool) {
	if len(t.Groups) == 0 {
		return nil, true
	}

	groupDescs := make([]*topology.GroupDescriptor, len(t.Groups))
	copy(groupDescs, t.Groups)
	sort.Slice(groupDescs, func(i, j int) bool { return groupDescs[i].ID < groupDescs[j].ID })

	pa := &pendingAdmission{task: t, pool: p}
	pa.locks = make([]*Lock, len(groupDescs))
	pa.groups = make([]*Group, len(groupDescs))

	pending := 0
	for i, gd := range groupDescs {
		g := p.resolve(gd)
		pa.groups[i] = g
		lk := g.Acquire(t.ID, t.Priority, pa.onGranted)
		pa.locks[i] = lk
		if !lk.granted {
			pending++
		}
	}
	pa.remaining.Store(int32(pending))
	if pending == 0 {
		return pa, true
	}
	return pa, false
}

// admit is called (possibly from a different goroutine than the one that
// popped the task) once every group lock for pa is granted.
func (p *Pool) admit(pa *pendingAdmission) {
	p.mu.Lock()
	p.awaiting--
	p.ready = append(p.ready, pa)
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	ctx := reaction.NewWorkerContext()

	for {
		pa, t, ok := p.next()
		if !ok {
			return
		}
		p.runOne(ctx, pa, t)
	}
}

// next blocks until there is work to do or the pool should stop. It
// implements the loop body from spec §4.5: "acquire the pool mutex, wait
// while the queue is empty and the pool is live, pop the highest-priority
// task, attempt group admission, execute or re-queue" - "re-queue" here
// means registering a pendingAdmission and moving on to the next task
// rather than blocking this worker.
func (p *Pool) next() (*pendingAdmission, *reaction.Task, bool) {
	for {
		p.mu.Lock()
		for len(p.ready) == 0 && p.queue.len() == 0 {
			quiescent := p.running == 0 && p.awaiting == 0
			if p.terminate || (p.draining && quiescent) {
				p.mu.Unlock()
				return nil, nil, false
			}
			p.cond.Wait()
		}

		if len(p.ready) > 0 {
			pa := p.ready[0]
			p.ready = p.ready[1:]
			p.running++
			p.mu.Unlock()
			return pa, pa.task, true
		}

		t := p.queue.pop()
		p.mu.Unlock()

		pa, runnable := p.attemptAdmission(t)
		if runnable {
			p.mu.Lock()
			p.running++
			p.mu.Unlock()
			return pa, t, true
		}

		// Not yet admitted: pa will call p.admit (which wakes this loop via
		// Broadcast) once every lock is granted. Track it as in-flight work
		// so a concurrent Drain doesn't declare the pool quiescent too
		// early, then loop around to try the next queued task.
		p.mu.Lock()
		p.awaiting++
		p.mu.Unlock()
	}
}

func (p *Pool) runOne(ctx *reaction.WorkerContext, pa *pendingAdmission, t *reaction.Task) {
	t.RunOn(ctx, workerID(ctx))
	if pa != nil {
		pa.release()
	}

	p.mu.Lock()
	p.running--
	idle := p.running == 0 && p.awaiting == 0 && p.queue.len() == 0 && len(p.ready) == 0
	p.mu.Unlock()

	if idle && p.onIdle != nil {
		p.onIdle()
	}
}

// RunMain runs the main-thread-affinity loop for a zero-concurrency pool on
// the calling goroutine, returning once the pool is terminated, or once it
// is draining with nothing queued, running or awaiting admission. This is the
// loop the PowerPlant.Start() caller runs (spec §4.5 "Main-thread
// affinity"). The calling goroutine is pinned to its current OS thread for
// the duration, via lockMainThread.
func (p *Pool) RunMain() {
	p.mainThreadID = lockMainThread()
	defer runtime.UnlockOSThread()

	ctx := reaction.NewWorkerContext()
	for {
		pa, t, ok := p.next()
		if !ok {
			return
		}
		p.runOne(ctx, pa, t)
	}
}

// MainThreadID returns the OS thread id RunMain pinned itself to, or 0
// before RunMain has been called or on platforms lockMainThread can't
// identify (see affinity_other.go).
func (p *Pool) MainThreadID() int { return p.mainThreadID }

// Drain flips the pool into draining state: no new non-persistent tasks
// are accepted, and workers will return once the queue empties (spec
// §4.5 Shutdown).
func (p *Pool) Drain() {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Terminate stops the pool unconditionally (used once the powerplant
// reaches Terminated and even persistent pools must join).
func (p *Pool) Terminate() {
	p.mu.Lock()
	p.terminate = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Wait blocks until all worker goroutines have returned.
func (p *Pool) Wait() { p.wg.Wait() }

// Idle reports whether the pool has no running tasks and an empty queue.
func (p *Pool) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running == 0 && p.awaiting == 0 && p.queue.len() == 0 && len(p.ready) == 0
}

// workerID derives a stable per-goroutine identifier for statistics from
// the WorkerContext's address - Go exposes no portable goroutine id (see
// DESIGN.md), so the context's pointer value stands in for one.
func workerID(ctx *reaction.WorkerContext) uint64 {
	return uint64(uintptr(unsafe.Pointer(ctx)))
}
