package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallbackReaction(name string, single bool, cb func()) *reaction.Reaction {
	return reaction.New("R", "Trigger<Go>", name, single, reaction.Hooks{
		Get: func(t *reaction.Task) ([]any, bool) { return nil, true },
		Callback: func(_ *reaction.Task, args []any) error {
			cb()
			return nil
		},
	})
}

func TestPool_RunsHighestPriorityFirst(t *testing.T) {
	pool := NewPool(topology.NewPool("p", 1, true, false), noGroups, nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	low := newCallbackReaction("low", false, func() { record("low") })
	high := newCallbackReaction("high", false, func() { record("high") })

	// Submit low first, then high: with a single worker already draining
	// the first popped task, ordering is only guaranteed among tasks
	// queued before any are popped, so submit both before the worker can
	// run either by holding it busy with a blocking first task.
	block := make(chan struct{})
	blocker := newCallbackReaction("blocker", false, func() { <-block; record("blocker") })
	bt, ok := blocker.NewTask(nil)
	require.True(t, ok)
	bt.Pool = pool.Descriptor()
	require.True(t, pool.Submit(bt))

	time.Sleep(5 * time.Millisecond) // let the worker pick up the blocker

	lt, _ := low.NewTask(nil)
	lt.Priority = 0
	lt.Pool = pool.Descriptor()
	ht, _ := high.NewTask(nil)
	ht.Priority = 10
	ht.Pool = pool.Descriptor()

	require.True(t, pool.Submit(lt))
	require.True(t, pool.Submit(ht))

	close(block)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"blocker", "high", "low"}, order)
}

func noGroups(d *topology.GroupDescriptor) *Group {
	panic("not expected to be called in this test")
}

func TestPool_GroupMutualExclusion(t *testing.T) {
	groups := map[topology.GroupID]*Group{}
	var gmu sync.Mutex
	resolve := func(d *topology.GroupDescriptor) *Group {
		gmu.Lock()
		defer gmu.Unlock()
		if g, ok := groups[d.ID]; ok {
			return g
		}
		g := NewGroup(d)
		groups[d.ID] = g
		return g
	}

	pool := NewPool(topology.NewPool("p", 4, true, false), resolve, nil)
	gd := topology.NewGroup("mutex", 1)

	var mu sync.Mutex
	var seq []string
	a := reaction.New("R", "Trigger<Go>", "A", false, reaction.Hooks{
		Get: func(t *reaction.Task) ([]any, bool) { return nil, true },
		Callback: func(_ *reaction.Task, args []any) error {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			seq = append(seq, "A")
			mu.Unlock()
			return nil
		},
	})
	b := reaction.New("R", "Trigger<Go>", "B", false, reaction.Hooks{
		Get: func(t *reaction.Task) ([]any, bool) { return nil, true },
		Callback: func(_ *reaction.Task, args []any) error {
			mu.Lock()
			seq = append(seq, "B")
			mu.Unlock()
			return nil
		},
	})

	at, _ := a.NewTask(nil)
	at.Pool = pool.Descriptor()
	at.Groups = []*topology.GroupDescriptor{gd}

	bt, _ := b.NewTask(nil)
	bt.Pool = pool.Descriptor()
	bt.Groups = []*topology.GroupDescriptor{gd}

	require.True(t, pool.Submit(at))
	require.True(t, pool.Submit(bt))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"A", "B"}, seq, "B must not run concurrently with (before) A releases the mutex")
}

func TestPool_DrainRejectsNewSubmissions(t *testing.T) {
	pool := NewPool(topology.NewPool("p", 1, true, false), noGroups, nil)
	pool.Drain()

	r := newCallbackReaction("x", false, func() {})
	tk, _ := r.NewTask(nil)
	tk.Pool = pool.Descriptor()

	assert.False(t, pool.Submit(tk))
}

func TestPool_PersistentAcceptsWhileDraining(t *testing.T) {
	pool := NewPool(topology.NewPool("p", 1, true, true), noGroups, nil)
	pool.Drain()

	done := make(chan struct{})
	r := newCallbackReaction("x", false, func() { close(done) })
	tk, _ := r.NewTask(nil)
	tk.Pool = pool.Descriptor()

	require.True(t, pool.Submit(tk))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("persistent pool must still run tasks while draining")
	}
	pool.Terminate()
	pool.Wait()
}

func TestPool_IdleCallbackFiresAfterLastTask(t *testing.T) {
	var idleCount int
	var mu sync.Mutex
	onIdle := func() {
		mu.Lock()
		idleCount++
		mu.Unlock()
	}
	pool := NewPool(topology.NewPool("p", 1, true, false), noGroups, onIdle)

	done := make(chan struct{})
	r := newCallbackReaction("x", false, func() { close(done) })
	tk, _ := r.NewTask(nil)
	tk.Pool = pool.Descriptor()
	require.True(t, pool.Submit(tk))

	<-done
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, idleCount, 1)
}
