package dsl

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclear-go/nuclear/chrono"
	clockpkg "github.com/nuclear-go/nuclear/clock"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

type point struct{ X, Y int }

func TestTrigger_SubscribesAndReadsLatest(t *testing.T) {
	ctx := newCtx()
	trig := NewTrigger[point]()

	r, err := Fuse(ctx, "Reactor", "cb", []any{trig}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)
	defer r.DoUnbind()

	// no value yet: Get misses
	_, ok := r.NewTask(nil)
	assert.False(t, ok)

	ctx.Stores.LatestFor(trig.SubscribedType()).Set(point{X: 1, Y: 2})

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{point{X: 1, Y: 2}}, task.Args)

	// TypeList subscriber present
	list := ctx.Stores.ListFor(trig.SubscribedType())
	assert.Len(t, list.Snapshot(), 1)

	r.DoUnbind()
	assert.Len(t, list.Snapshot(), 0)
}

func TestWith_DoesNotSubscribeButReadsLatest(t *testing.T) {
	ctx := newCtx()
	with := NewWith[point]()

	r, err := Fuse(ctx, "Reactor", "cb", []any{with}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	list := ctx.Stores.ListFor(with.SubscribedType())
	assert.Len(t, list.Snapshot(), 0)

	ctx.Stores.LatestFor(with.SubscribedType()).Set(point{X: 5, Y: 6})

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{point{X: 5, Y: 6}}, task.Args)
}

func TestLast_ContributesNewestFirstSlice(t *testing.T) {
	ctx := newCtx()
	last := NewLast[point](2)

	r, err := Fuse(ctx, "Reactor", "cb", []any{last}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	hist := ctx.Stores.HistoryFor(last.SubscribedType(), 2)
	hist.Push(point{X: 1})
	hist.Push(point{X: 2})
	hist.Push(point{X: 3})

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	require.Len(t, task.Args, 1)
	assert.Equal(t, []any{point{X: 3}, point{X: 2}}, task.Args[0])
}

func TestLast_EmptyHistoryStillCountsAsPresent(t *testing.T) {
	ctx := newCtx()
	last := NewLast[point](3)

	r, err := Fuse(ctx, "Reactor", "cb", []any{last}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{}, task.Args[0])
}

func TestOptional_MissingInnerStillProducesTask(t *testing.T) {
	ctx := newCtx()
	inner := NewWith[point]()
	opt := NewOptional(inner)

	r, err := Fuse(ctx, "Reactor", "cb", []any{opt}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{nil}, task.Args)
}

func TestOptional_PresentInnerPassesThroughValue(t *testing.T) {
	ctx := newCtx()
	inner := NewWith[point]()
	opt := NewOptional(inner)

	r, err := Fuse(ctx, "Reactor", "cb", []any{opt}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	ctx.Stores.LatestFor(inner.SubscribedType()).Set(point{X: 9})

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{point{X: 9}}, task.Args)
}

func TestSync_SameTagSharesOneGroupAcrossReactions(t *testing.T) {
	type tag struct{}
	ctx := newCtx()

	r1, err := Fuse(ctx, "Reactor1", "cb", []any{Sync[tag]()}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)
	r2, err := Fuse(ctx, "Reactor2", "cb", []any{Sync[tag]()}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	t1, ok := r1.NewTask(nil)
	require.True(t, ok)
	t2, ok := r2.NewTask(nil)
	require.True(t, ok)

	require.Len(t, t1.Groups, 1)
	require.Len(t, t2.Groups, 1)
	assert.Equal(t, t1.Groups[0].ID, t2.Groups[0].ID)
}

func TestStartup_FiresFromMessage(t *testing.T) {
	ctx := newCtx()
	r, err := Fuse(ctx, "Reactor", "cb", []any{Startup()}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{message.Startup{}}, task.Args)
}

func TestShutdown_FiresFromMessage(t *testing.T) {
	ctx := newCtx()
	r, err := Fuse(ctx, "Reactor", "cb", []any{Shutdown()}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, []any{message.Shutdown{}}, task.Args)
}

func TestEvery_RegistersChronoStepAndFiltersByPeriod(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clockpkg.New()
	c.SetClock(base, 1)
	svc := chrono.New(c)

	ctx := &BindContext{Stores: newCtx().Stores, Chrono: svc, Registry: NewRegistry()}
	ctx.Emit = func(reflect.Type, any) {}

	every := Every(10 * time.Millisecond)
	r, err := Fuse(ctx, "Reactor", "cb", []any{every}, func(*reaction.Task, []any) error { return nil })
	require.NoError(t, err)

	// Simulate a fire by setting the Latest value directly (the real path
	// goes through Emit -> a reactor's message pipeline, which the nuclear
	// package wires end to end; here we only verify the word's own
	// Get/Precondition pairing).
	ctx.Stores.LatestFor(everyMessageType).Set(message.Every{Period: 10 * time.Millisecond, FireTime: base})
	task, ok := r.NewTask(nil)
	require.True(t, ok)
	assert.Equal(t, message.Every{Period: 10 * time.Millisecond, FireTime: base}, task.Args[0])

	// A fire belonging to a different period is filtered out.
	ctx.Stores.LatestFor(everyMessageType).Set(message.Every{Period: 20 * time.Millisecond, FireTime: base})
	_, ok = r.NewTask(nil)
	assert.False(t, ok)
}

func TestOn1_AdaptsTypedCallback(t *testing.T) {
	var got point
	fn := On1(func(_ *reaction.Task, p point) error {
		got = p
		return nil
	})

	err := fn(nil, []any{point{X: 7, Y: 8}})
	require.NoError(t, err)
	assert.Equal(t, point{X: 7, Y: 8}, got)
}

func TestOn2_MistypedSlotFallsBackToZeroValue(t *testing.T) {
	var gotA point
	var gotB string
	fn := On2(func(_ *reaction.Task, a point, b string) error {
		gotA = a
		gotB = b
		return nil
	})

	err := fn(nil, []any{"not a point", 42})
	require.NoError(t, err)
	assert.Equal(t, point{}, gotA)
	assert.Equal(t, "", gotB)
}
