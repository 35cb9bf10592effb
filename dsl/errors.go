package dsl

import "fmt"

// DSLMappingError is returned by Fuse when the supplied bind arguments
// cannot be distributed across the declared words (spec §7
// DSLMappingError, §4.1 "A full assignment must be found; otherwise bind
// fails with 'DSL arguments do not map to any word'").
type DSLMappingError struct {
	Remaining int // arguments left unassigned when distribution gave up
}

func (e *DSLMappingError) Error() string {
	return fmt.Sprintf("nuclear/dsl: DSL arguments do not map to any word (%d unassigned)", e.Remaining)
}

// MultiplePoolError is returned by Fuse when more than one word in the
// composition provides a pool hook (spec §7 MultiplePoolError, §4.1
// "exactly one word may provide a pool; more than one is a configuration
// error reported at bind time").
type MultiplePoolError struct {
	First, Second string // type names of the conflicting words
}

func (e *MultiplePoolError) Error() string {
	return fmt.Sprintf("nuclear/dsl: multiple words provide a pool (%s and %s)", e.First, e.Second)
}
