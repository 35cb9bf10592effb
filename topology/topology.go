// Package topology defines the stable descriptors shared between the
// reaction, scheduler, and dsl packages: pools and groups.
//
// Keeping these types in a leaf package (rather than on scheduler.Pool or
// scheduler.Group directly) avoids an import cycle: reaction.Task needs to
// know its target pool and groups, and the scheduler needs to know about
// reaction.Task to run it.
package topology

import "sync/atomic"

// PoolID uniquely identifies a pool for the life of the process.
type PoolID uint64

// GroupID uniquely identifies a group for the life of the process.
type GroupID uint64

var (
	poolIDCounter  atomic.Uint64
	groupIDCounter atomic.Uint64
)

// NextPoolID allocates a new, process-unique pool id.
func NextPoolID() PoolID { return PoolID(poolIDCounter.Add(1)) }

// NextGroupID allocates a new, process-unique group id.
func NextGroupID() GroupID { return GroupID(groupIDCounter.Add(1)) }

// PoolDescriptor names a worker pool. Concurrency zero means "main thread
// only" - the pool has no dedicated workers and tasks are served from the
// Start() caller's thread instead.
type PoolDescriptor struct {
	ID            PoolID
	Name          string
	Concurrency   int
	CountsForIdle bool
	Persistent    bool
}

// GroupDescriptor names a mutual-exclusion domain. Concurrency is the token
// count; 1 means a plain mutex.
type GroupDescriptor struct {
	ID          GroupID
	Name        string
	Concurrency int
}

// MainPool is the well-known descriptor for the main-thread affinity pool.
// It is not registered via NextPoolID since its id is a fixed sentinel.
var MainPool = &PoolDescriptor{
	ID:            0,
	Name:          "main",
	Concurrency:   0,
	CountsForIdle: true,
	Persistent:    false,
}

// NewPool creates a new, distinctly-identified pool descriptor.
func NewPool(name string, concurrency int, countsForIdle, persistent bool) *PoolDescriptor {
	return &PoolDescriptor{
		ID:            NextPoolID(),
		Name:          name,
		Concurrency:   concurrency,
		CountsForIdle: countsForIdle,
		Persistent:    persistent,
	}
}

// NewGroup creates a new, distinctly-identified group descriptor.
func NewGroup(name string, concurrency int) *GroupDescriptor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &GroupDescriptor{ID: NextGroupID(), Name: name, Concurrency: concurrency}
}
