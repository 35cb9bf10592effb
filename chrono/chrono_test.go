package chrono

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nuclear-go/nuclear/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FiresAfterAdjustClock(t *testing.T) {
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewWithBaseClock(func() time.Time { return fakeNow })
	s := New(c)

	var count atomic.Int32
	s.Register(Key{Period: 10 * time.Millisecond, MessageType: "every"}, 10*time.Millisecond, func(time.Time) {
		count.Add(1)
	})
	s.Start()
	defer s.Stop()

	c.AdjustClock(55*time.Millisecond, 1)

	require.Eventually(t, func() bool {
		return count.Load() >= 5
	}, time.Second, time.Millisecond, "expected at least 5 fires after advancing 55ms at a 10ms period")

	assert.LessOrEqual(t, count.Load(), int32(6), "at most ceil(55/10)+something fires, never unboundedly many")
}

func TestService_RegisterIsIdempotentPerKey(t *testing.T) {
	c := clock.New()
	s := New(c)

	k := Key{Period: time.Minute, MessageType: "x"}
	var calls int
	var mu sync.Mutex
	s.Register(k, time.Minute, func(time.Time) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	s.Register(k, time.Minute, func(time.Time) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.mu.Lock()
	n := s.heap.Len()
	s.mu.Unlock()
	assert.Equal(t, 1, n, "registering the same key twice must not create a second wheel entry")
}

func TestService_CatchUpFiresEachStepOncePerWake(t *testing.T) {
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewWithBaseClock(func() time.Time { return fakeNow })
	s := New(c)

	var fastCount, slowCount atomic.Int32
	s.Register(Key{Period: 5 * time.Millisecond, MessageType: "fast"}, 5*time.Millisecond, func(time.Time) {
		fastCount.Add(1)
	})
	s.Register(Key{Period: 100 * time.Millisecond, MessageType: "slow"}, 100*time.Millisecond, func(time.Time) {
		slowCount.Add(1)
	})
	s.Start()
	defer s.Stop()

	// Jump far enough that the slow step is overdue by two periods; it must
	// still only accumulate bounded fires (one per wake), never fire
	// thousands of times in a tight loop.
	c.AdjustClock(250*time.Millisecond, 1)

	require.Eventually(t, func() bool {
		return fastCount.Load() >= 40 && slowCount.Load() >= 2
	}, time.Second, time.Millisecond)

	assert.LessOrEqual(t, slowCount.Load(), int32(4))
}

func TestService_EachStepsCallbacksSeeItsOwnFireTimeWhenMultipleFireTogether(t *testing.T) {
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewWithBaseClock(func() time.Time { return fakeNow })
	s := New(c)

	var mu sync.Mutex
	var fastTimes, slowTimes []time.Time
	s.Register(Key{Period: 10 * time.Millisecond, MessageType: "fast"}, 10*time.Millisecond, func(ft time.Time) {
		mu.Lock()
		fastTimes = append(fastTimes, ft)
		mu.Unlock()
	})
	s.Register(Key{Period: 20 * time.Millisecond, MessageType: "slow"}, 20*time.Millisecond, func(ft time.Time) {
		mu.Lock()
		slowTimes = append(slowTimes, ft)
		mu.Unlock()
	})
	s.Start()
	defer s.Stop()

	// Both steps are due in the same wake: fast's next fire is now+10ms,
	// slow's is now+20ms, and advancing by 20ms makes both due at once.
	c.AdjustClock(20*time.Millisecond, 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fastTimes) >= 1 && len(slowTimes) >= 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, fakeNow.Add(10*time.Millisecond), fastTimes[0], "fast step's first callback must see its own nextFire, not slow's")
	assert.Equal(t, fakeNow.Add(20*time.Millisecond), slowTimes[0], "slow step's first callback must see its own nextFire, not fast's")
}

func TestService_StopJoinsGoroutine(t *testing.T) {
	c := clock.New()
	s := New(c)
	s.Register(Key{Period: time.Hour, MessageType: "noop"}, time.Hour, func(time.Time) {})
	s.Start()
	s.Stop() // must return, not hang

	select {
	case <-s.done:
	default:
		t.Fatal("Stop must close done before returning")
	}
}
