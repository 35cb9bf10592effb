package nuclear

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclear-go/nuclear/dsl"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

type plainReactor struct {
	Reactor
}

func (r *plainReactor) Install() error { return nil }

func TestReactor_NameDefaultsToInstalledTypeName(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	r, err := Install(pp, &plainReactor{})
	require.NoError(t, err)

	assert.Equal(t, "nuclear.plainReactor", r.Name())
}

func TestReactor_SetNameOverridesDisplayName(t *testing.T) {
	pp, err := New()
	require.NoError(t, err)

	r, err := Install(pp, &plainReactor{})
	require.NoError(t, err)

	r.SetName("Widget")
	assert.Equal(t, "Widget", r.Name())
}

func TestReactor_LogLevelFiltersBelowOwnFloor(t *testing.T) {
	pp, err := New(WithMinimumLogLevel(message.LogTrace))
	require.NoError(t, err)

	r, err := Install(pp, &plainReactor{})
	require.NoError(t, err)
	r.SetLogLevel(message.LogWarn)

	var mu sync.Mutex
	var seen []message.LogMessage
	sink := &recorderReactor{}
	_, err = Install(pp, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Bind([]any{dsl.NewTrigger[message.LogMessage]()}, dsl.On1(func(_ *reaction.Task, m message.LogMessage) error {
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
		return nil
	}), "OnLogMessage"))

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()
	for pp.State() != "Running" {
		time.Sleep(time.Millisecond)
	}

	// Below the reactor's own floor: dropped before it ever reaches the
	// process-wide minimum or the bus.
	r.LogDebug("should not appear")
	r.LogError("should appear")

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	pp.Shutdown()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "should appear", seen[0].Text)
	assert.Equal(t, message.LogError, seen[0].Level)
}

func TestDisplayNameFor_StripsPointer(t *testing.T) {
	assert.Equal(t, "nuclear.plainReactor", displayNameFor(&plainReactor{}))
}

func TestPowerPlant_TraceWriterEncodesStatistics(t *testing.T) {
	var buf bytes.Buffer
	pp, err := New(WithTrace(&buf))
	require.NoError(t, err)

	r, err := Install(pp, &recorderReactor{})
	require.NoError(t, err)
	_ = r

	done := make(chan error, 1)
	go func() { done <- pp.Start() }()
	for pp.State() != "Running" {
		time.Sleep(time.Millisecond)
	}
	pp.Emit(Local, tick{N: 1})
	pp.Shutdown()
	require.NoError(t, <-done)

	assert.NotEmpty(t, buf.Bytes())
}
