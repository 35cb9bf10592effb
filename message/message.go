// Package message holds the built-in message types the PowerPlant lifecycle
// and chrono service emit on the same typed bus user reactions subscribe
// to, rather than delivering them through a separate side channel.
//
// Grounded on original_source/NUClear/Internal/CommandTypes/CommandTypes.h
// (CommandLineArguments, network target/reliability fields) and
// ReactorController.h/ChronoMaster.cpp (Startup/Shutdown/Idle), per
// SPEC_FULL.md §6.
package message

import (
	"time"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

// Startup is emitted exactly once during the PowerPlant's Starting→Running
// transition. Reactions bound with dsl.Startup() receive it.
type Startup struct{}

// Shutdown is emitted exactly once when the PowerPlant begins draining.
// Reactions bound with dsl.Shutdown() receive it.
type Shutdown struct{}

// Idle is emitted whenever every CountsForIdle pool is simultaneously idle.
// Pool is reserved for a future per-pool idle signal; the scheduler currently
// only tracks the global rising edge across all CountsForIdle pools at once,
// so Pool is always the zero PoolID.
type Idle struct {
	Pool topology.PoolID
}

// CommandLineArguments is emitted once during Starting, carrying the argv
// the process was launched with.
type CommandLineArguments struct {
	Argv []string
}

// Every carries the simulated fire time of a chrono-driven periodic step,
// delivered to reactions declared with dsl.Every(period).
type Every struct {
	Period   time.Duration
	FireTime time.Time
}

// LogLevel mirrors the severity levels a Reactor's log<Level>() calls and
// per-reactor log_level filter use.
type LogLevel int

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
	LogFatal
)

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "trace"
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	case LogFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// LogMessage is emitted for every log<Level>() call that passes both the
// reactor's and the process's minimum level filter, so other reactions can
// subscribe to logging as ordinary data.
type LogMessage struct {
	Level       LogLevel
	ReactorName string
	Text        string
	When        time.Time
}

// Statistics wraps a reaction lifecycle event (spec §4.10) for delivery on
// the bus; reactions that subscribe to it are automatically exempted from
// generating further Statistics events to break the self-recursion (spec
// §4.10's cause-chain cycle-break rule).
type Statistics struct {
	Event reaction.StatEvent
}
