package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

// State mirrors the Draining/Terminated portion of spec §4.9's PowerPlant
// lifecycle, scoped to just the scheduler. Grounded on the teacher
// eventloop's FastState: a tiny atomic CAS machine, no mutex on the hot
// path.
type State uint32

const (
	StateRunning State = iota
	StateDraining
	StateTerminated
)

// Scheduler is the top-level object from spec §4.5: it resolves each
// task's pool and group descriptors to live Pool/Group instances, tracks
// idle transitions across pools that CountsForIdle, and sequences
// shutdown.
type Scheduler struct {
	state atomic.Uint32

	mu     sync.Mutex
	pools  map[topology.PoolID]*Pool
	groups map[topology.GroupID]*Group

	mainPool *Pool

	// idleMu guards the idle-transition bookkeeping; counted separately
	// from per-pool mutexes since it spans every watched pool.
	idleMu       sync.Mutex
	wasAllIdle   bool
	onAllIdle    func()
	droppedCount atomic.Int64
}

// New creates an empty Scheduler. The main pool is created eagerly since
// every PowerPlant has exactly one.
func New(onAllIdle func()) *Scheduler {
	s := &Scheduler{
		pools:     make(map[topology.PoolID]*Pool),
		groups:    make(map[topology.GroupID]*Group),
		onAllIdle: onAllIdle,
	}
	s.mainPool = NewPool(topology.MainPool, s.groupFor, s.checkIdle)
	s.pools[topology.MainPool.ID] = s.mainPool
	return s
}

// MainPool returns the scheduler's main-thread-affinity pool.
func (s *Scheduler) MainPool() *Pool { return s.mainPool }

// PoolFor returns (creating on first use) the live Pool for d.
func (s *Scheduler) PoolFor(d *topology.PoolDescriptor) *Pool {
	if d == nil || d == topology.MainPool {
		return s.mainPool
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pools[d.ID]; ok {
		return p
	}
	p := NewPool(d, s.groupFor, s.checkIdle)
	s.pools[d.ID] = p
	return p
}

// groupFor returns (creating on first use) the live Group for d.
func (s *Scheduler) groupFor(d *topology.GroupDescriptor) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[d.ID]; ok {
		return g
	}
	g := NewGroup(d)
	s.groups[d.ID] = g
	return g
}

// Submit resolves t's pool and hands it off. Returns false if the task was
// dropped because the scheduler is draining and the pool is not
// persistent (spec §7 SchedulerShuttingDown).
func (s *Scheduler) Submit(t *reaction.Task) bool {
	p := s.PoolFor(t.Pool)
	ok := p.Submit(t)
	if !ok {
		s.droppedCount.Add(1)
	}
	return ok
}

// DroppedCount returns how many submissions were dropped due to shutdown.
func (s *Scheduler) DroppedCount() int64 { return s.droppedCount.Load() }

// checkIdle is passed to every Pool as onIdle; it re-evaluates whether all
// CountsForIdle pools are simultaneously idle and, on the rising edge,
// invokes onAllIdle (spec §4.5 "Idle notification").
func (s *Scheduler) checkIdle() {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()

	allIdle := true
	s.mu.Lock()
	for _, p := range s.pools {
		if !p.Descriptor().CountsForIdle {
			continue
		}
		if !p.Idle() {
			allIdle = false
			break
		}
	}
	s.mu.Unlock()

	if allIdle && !s.wasAllIdle {
		s.wasAllIdle = true
		if s.onAllIdle != nil {
			s.onAllIdle()
		}
	} else if !allIdle {
		s.wasAllIdle = false
	}
}

// Shutdown transitions the scheduler to Draining: non-persistent pools
// stop accepting new tasks and their workers return once their queues
// drain (spec §4.5). Idempotent.
func (s *Scheduler) Shutdown() {
	if !s.state.CompareAndSwap(uint32(StateRunning), uint32(StateDraining)) {
		return
	}
	s.mu.Lock()
	pools := make([]*Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	for _, p := range pools {
		p.Drain()
	}
}

// WaitDrained blocks until every non-persistent pool's workers have
// returned (spec §4.9 Draining state: "drain non-persistent pools, join
// workers").
func (s *Scheduler) WaitDrained() {
	s.mu.Lock()
	pools := make([]*Pool, 0, len(s.pools))
	for _, p := range s.pools {
		if !p.Descriptor().Persistent {
			pools = append(pools, p)
		}
	}
	s.mu.Unlock()

	for _, p := range pools {
		if p.Descriptor().Concurrency > 0 {
			p.Wait()
		}
	}
}

// Terminate stops every pool, including persistent ones, and blocks until
// all worker goroutines have returned (spec §4.9 Terminated state).
func (s *Scheduler) Terminate() {
	s.state.Store(uint32(StateTerminated))

	s.mu.Lock()
	pools := make([]*Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	for _, p := range pools {
		p.Terminate()
	}
	for _, p := range pools {
		if p.Descriptor().Concurrency > 0 {
			p.Wait()
		}
	}
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }
