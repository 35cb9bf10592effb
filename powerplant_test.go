package nuclear

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclear-go/nuclear/dsl"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

type tick struct{ N int }

type recorderReactor struct {
	Reactor
	mu   sync.Mutex
	seen []int
}

func (r *recorderReactor) Install() error {
	return r.Bind([]any{dsl.NewTrigger[tick]()}, dsl.On1(func(_ *reaction.Task, t tick) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, t.N)
		return nil
	}), "OnTick")
}

func (r *recorderReactor) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.seen))
	copy(out, r.seen)
	return out
}

func TestPowerPlant_EmitLocalThenShutdown_RunsCallbacksInOrder(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	r, err := Install(pp, &recorderReactor{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for pp.State() != "Running" {
			time.Sleep(time.Millisecond)
		}
		pp.Emit(Local, tick{N: 1})
		pp.Emit(Local, tick{N: 2})
		pp.Emit(Local, tick{N: 3})
		pp.Shutdown()
		close(done)
	}()

	require.NoError(t, pp.Start())
	<-done

	assert.Equal(t, []int{1, 2, 3}, r.snapshot())
	assert.Equal(t, "Terminated", pp.State())
}

// concurrentRecorder's OnTick blocks until two ticks are in flight at once,
// proving both ran on distinct worker goroutines rather than serialized on
// the single main-pool thread that's blocked inside Start().
type concurrentRecorder struct {
	Reactor
	wg sync.WaitGroup
}

func (r *concurrentRecorder) Install() error {
	return r.Bind([]any{dsl.NewTrigger[tick]()}, dsl.On1(func(_ *reaction.Task, _ tick) error {
		r.wg.Done()
		r.wg.Wait()
		return nil
	}), "OnTick")
}

func TestPowerPlant_ReactionsWithNoPoolWordRunOnConfiguredDefaultPool(t *testing.T) {
	pp, err := New(WithDefaultPoolConcurrency(2))
	require.NoError(t, err)

	r := &concurrentRecorder{}
	r.wg.Add(2)
	_, err = Install(pp, r)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()
	for pp.State() != "Running" {
		time.Sleep(time.Millisecond)
	}

	pp.Emit(Local, tick{N: 1})
	pp.Emit(Local, tick{N: 2})

	waited := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("both ticks never ran concurrently - reactions are not reaching a real default pool")
	}

	pp.Shutdown()
	require.NoError(t, <-done)
}

func TestPowerPlant_ZeroDefaultPoolConcurrencyFoldsOntoMainPool(t *testing.T) {
	pp, err := New(WithDefaultPoolConcurrency(0))
	require.NoError(t, err)
	assert.Same(t, pp.defaultPool, topology.MainPool)
}

func TestPowerPlant_StartTwiceReturnsError(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()

	// Give Start a moment to move past Constructed before we try again.
	for pp.State() == "Constructed" {
		time.Sleep(time.Millisecond)
	}
	err = pp.Start()
	assert.Error(t, err)

	pp.Shutdown()
	require.NoError(t, <-done)
}

func TestPowerPlant_ShutdownTwiceIsNoop(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()

	for pp.State() != "Running" {
		time.Sleep(time.Millisecond)
	}
	pp.Shutdown()
	assert.NotPanics(t, pp.Shutdown)

	require.NoError(t, <-done)
}

func TestPowerPlant_InstallAfterStartingIsRejected(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()
	for pp.State() == "Constructed" {
		time.Sleep(time.Millisecond)
	}

	_, err = Install(pp, &recorderReactor{})
	assert.Error(t, err)

	pp.Shutdown()
	require.NoError(t, <-done)
}

func TestPowerPlant_StartupAndShutdownMessagesFire(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	var mu sync.Mutex
	var startupSeen, shutdownSeen bool
	r := &recorderReactor{}
	_, err = Install(pp, r)
	require.NoError(t, err)
	require.NoError(t, r.Bind([]any{dsl.Startup()}, dsl.On1(func(_ *reaction.Task, _ message.Startup) error {
		mu.Lock()
		startupSeen = true
		mu.Unlock()
		return nil
	}), "OnStartup"))
	require.NoError(t, r.Bind([]any{dsl.Shutdown()}, dsl.On1(func(_ *reaction.Task, _ message.Shutdown) error {
		mu.Lock()
		shutdownSeen = true
		mu.Unlock()
		return nil
	}), "OnShutdown"))

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()
	for pp.State() == "Constructed" || pp.State() == "Starting" {
		time.Sleep(time.Millisecond)
	}
	pp.Shutdown()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, startupSeen)
	assert.True(t, shutdownSeen)
}
