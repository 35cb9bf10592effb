// Package chrono implements the chrono service from spec §4.7: a
// time-sorted wheel of periodic steps, advanced by a dedicated goroutine
// against the simulated clock (clock.Clock). When the clock is
// fast-forwarded past several periods, an overdue step fires once for every
// elapsed period, one fire per pass of the loop.
//
// Grounded on the teacher eventloop.Loop's timerHeap (a container/heap
// min-heap of {when, task} pairs woken by a single dedicated goroutine),
// generalized from one-shot timers to repeating steps and re-pointed at
// the simulated clock instead of time.Now.
package chrono

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nuclear-go/nuclear/clock"
)

// Callback is invoked once per fire of a step, carrying the simulated fire
// time.
type Callback func(fireTime time.Time)

// Key identifies a registered step for idempotent registration (spec §4.7:
// "Registration is idempotent per (period, message-type) key").
type Key struct {
	Period      time.Duration
	MessageType any
}

// step is one entry in the wheel: a period, its next scheduled simulated
// fire time, and the callbacks to invoke when it fires.
type step struct {
	key       Key
	period    time.Duration
	nextFire  time.Time
	callbacks []Callback
	index     int // heap.Interface bookkeeping
}

// firedBatch is one step's worth of due callbacks from a single wake pass,
// paired with that step's own fire time - steps due in the same pass each
// get their own batch so one step's callbacks never see another step's
// fire time.
type firedBatch struct {
	fireTime  time.Time
	callbacks []Callback
}

// stepHeap is a min-heap of steps ordered by nextFire, mirroring the
// teacher's timerHeap.
type stepHeap []*step

func (h stepHeap) Len() int            { return len(h) }
func (h stepHeap) Less(i, j int) bool  { return h[i].nextFire.Before(h[j].nextFire) }
func (h stepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *stepHeap) Push(x any) {
	s := x.(*step)
	s.index = len(*h)
	*h = append(*h, s)
}
func (h *stepHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*h = old[:n-1]
	return s
}

// Service runs the chrono main loop described in spec §4.7: compute now,
// fire every due step at most once, advance next_fire into the future,
// re-sort, and sleep until the next deadline or a wakeup.
type Service struct {
	clock *clock.Clock

	mu      sync.Mutex
	cond    *sync.Cond
	heap    stepHeap
	byKey   map[Key]*step
	running bool
	stop    bool
	done    chan struct{}
}

// New creates a Service bound to c. Call Start to launch its goroutine.
func New(c *clock.Clock) *Service {
	s := &Service{
		clock: c,
		byKey: make(map[Key]*step),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	heap.Init(&s.heap)
	return s
}

// Register adds a repeating step firing cb every period, keyed by k. If a
// step already exists for k, cb is appended to it rather than creating a
// second wheel entry (spec §4.7 idempotent registration). The first fire is
// one period after the current simulated time.
func (s *Service) Register(k Key, period time.Duration, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[k]; ok {
		existing.callbacks = append(existing.callbacks, cb)
		return
	}

	st := &step{
		key:       k,
		period:    period,
		nextFire:  s.clock.Now().Add(period),
		callbacks: []Callback{cb},
	}
	s.byKey[k] = st
	heap.Push(&s.heap, st)
	s.cond.Broadcast()
}

// Start launches the dedicated wheel goroutine. Safe to call once.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run()
}

// Stop halts the wheel goroutine and blocks until it has exited (spec
// §4.7's "shutdown releases a companion lock, which unblocks the timed
// wait and exits" - modeled here with a stop flag plus Broadcast, since Go
// offers no portable timed mutex).
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.stop = true
	s.mu.Unlock()
	s.cond.Broadcast()
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if s.stop {
			s.mu.Unlock()
			return
		}

		now := s.clock.Now()
		var batches []firedBatch
		// Visit each distinct due step at most once this pass (tracked by
		// step identity, not a flat pop count), so an individual step fires
		// at most once per wake (spec §4.7 catch-up coalescing) no matter
		// how re-heapifying reorders the others; a step left over-due after
		// its single advance is picked up again on the next pass through
		// this loop, which happens immediately (no sleep) since it is still
		// due.
		visited := make(map[*step]bool)
		for s.heap.Len() > 0 && !s.heap[0].nextFire.After(now) && !visited[s.heap[0]] {
			st := s.heap[0]
			visited[st] = true
			cbs := make([]Callback, len(st.callbacks))
			copy(cbs, st.callbacks)
			batches = append(batches, firedBatch{fireTime: st.nextFire, callbacks: cbs})
			st.nextFire = st.nextFire.Add(st.period)
			heap.Fix(&s.heap, 0)
		}

		if len(batches) > 0 {
			s.mu.Unlock()
			for _, b := range batches {
				for _, cb := range b.callbacks {
					cb(b.fireTime)
				}
			}
			continue
		}

		if s.heap.Len() == 0 {
			s.cond.Wait()
			s.mu.Unlock()
			continue
		}

		deadline := s.heap[0].nextFire
		s.mu.Unlock()

		s.sleepUntil(deadline)
	}
}

// sleepUntil blocks for the real-time duration corresponding to the
// simulated interval until deadline, capped at a 20ms poll interval. It is
// a plain sleep, not woken early: Stop, Register, or a change in
// rate_of_time is noticed by the loop within one poll interval rather than
// after oversleeping against a stale duration.
func (s *Service) sleepUntil(deadline time.Time) {
	const maxPoll = 20 * time.Millisecond

	simulatedRemaining := deadline.Sub(s.clock.Now())
	if simulatedRemaining <= 0 {
		return
	}
	realRemaining := s.clock.RealDuration(simulatedRemaining)
	if realRemaining > maxPoll {
		realRemaining = maxPoll
	}
	if realRemaining <= 0 {
		return
	}
	time.Sleep(realRemaining)
}

