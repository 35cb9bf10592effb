// Package nuclear implements the NUClear-style reactive concurrency
// runtime described across the component packages: reactors declare
// reactions via the dsl package's word composition, the scheduler runs
// them across named pools and groups, chrono drives periodic reactions
// off the simulated clock, and stats/tracing observes the whole thing.
//
// This file follows the teacher eventloop's error taxonomy (errors.go): a
// small closed set of typed errors, each supporting errors.Is/errors.As via
// Unwrap, plus a WrapError convenience function.
package nuclear

import (
	"fmt"

	"github.com/nuclear-go/nuclear/dsl"
)

// DSLMappingError and MultiplePoolError are bind-time failures from the dsl
// package, re-exported here since Install returns them directly to the
// caller (spec §7: "bind-time errors propagate to the caller of install").
type (
	DSLMappingError   = dsl.DSLMappingError
	MultiplePoolError = dsl.MultiplePoolError
)

// NoDataError marks a task that was not created because a non-optional
// get() source had no value (spec §7). Never returned to a caller; it is
// recorded only as a MISSING_DATA statistics event.
type NoDataError struct {
	ReactorName string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("nuclear: %s: no data for non-optional source", e.ReactorName)
}

// PreconditionVetoError marks a task that a precondition() hook vetoed
// (spec §7). Never returned to a caller; recorded as a BLOCKED statistics
// event.
type PreconditionVetoError struct {
	ReactorName string
}

func (e *PreconditionVetoError) Error() string {
	return fmt.Sprintf("nuclear: %s: precondition vetoed task", e.ReactorName)
}

// SchedulerShuttingDownError marks a task dropped because it was submitted
// to a non-persistent pool during Draining (spec §7). Never returned to a
// caller; counted via Scheduler.DroppedCount.
type SchedulerShuttingDownError struct {
	PoolName string
}

func (e *SchedulerShuttingDownError) Error() string {
	return fmt.Sprintf("nuclear: pool %s: scheduler shutting down", e.PoolName)
}

// CallbackPanicError wraps a panic value recovered from a reaction
// callback (spec §7 CallbackException). Unwrap exposes the original error
// when the panic value was one.
type CallbackPanicError struct {
	ReactorName string
	Value       any
}

func (e *CallbackPanicError) Error() string {
	return fmt.Sprintf("nuclear: %s: callback panicked: %v", e.ReactorName, e.Value)
}

func (e *CallbackPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WrapError wraps cause with a message, preserving it for errors.Is/As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
