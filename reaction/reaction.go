// Package reaction implements the Reaction and ReactionTask types from
// spec §4.2: a Reaction is a declared subscription with fused DSL hooks; a
// ReactionTask is one invocation of it, carrying eagerly-captured inputs
// and a lifecycle statistics record.
//
// Grounded on the original NUClear Internal/Reaction.h/.cpp (task
// allocation, cause capture) and the teacher eventloop's promise registry
// id-allocation pattern (monotonic atomic counters, never reused).
package reaction

import (
	"sync/atomic"

	"github.com/nuclear-go/nuclear/topology"
)

// ID uniquely identifies a Reaction for the life of the process.
type ID uint64

// TaskID uniquely identifies a ReactionTask for the life of the process.
type TaskID uint64

var (
	reactionIDCounter atomic.Uint64
	taskIDCounter      atomic.Uint64
)

// NextID allocates a new, strictly monotonic reaction id (spec invariant:
// "reaction_id and task_id are strictly monotonic, unique for the life of
// the process").
func NextID() ID { return ID(reactionIDCounter.Add(1)) }

// NextTaskID allocates a new, strictly monotonic task id.
func NextTaskID() TaskID { return TaskID(taskIDCounter.Add(1)) }

// Cause identifies the task that was running when a new task was created
// (spec §2, "cause chain"). A zero Cause (ReactionID == 0) means there was
// no running task - e.g. the initial emit from outside any reaction.
type Cause struct {
	ReactionID ID
	TaskID     TaskID
}

// Hooks bundles the fused DSL operations for one Reaction (spec §4.1's
// hook table, already composed at bind time). Every field may be nil,
// meaning "this operation contributes nothing" - callers apply the
// documented defaults (AND-true for Precondition, NORMAL for Priority, a
// no-op for the Run hooks).
type Hooks struct {
	Get           func(t *Task) ([]any, bool)
	Precondition  func(t *Task) bool
	Priority      func(t *Task) int
	Groups        func(t *Task) []*topology.GroupDescriptor
	Pool          func(t *Task) *topology.PoolDescriptor
	PreRun        func(t *Task)
	PostRun       func(t *Task)
	Postcondition func(t *Task)
	Reschedule    func(t *Task) (*Task, bool)
	// Callback receives the task itself alongside its captured args, so an
	// implementation can derive a Cause for anything it emits (spec §2
	// "cause chain") without a process-wide current-task lookup.
	Callback func(t *Task, args []any) error
}

// Reaction is a declared subscription, owning its fused hooks and
// identifiers (spec §3 "Reaction").
type Reaction struct {
	ID           ID
	ReactorName  string
	DSLSummary   string
	CallbackName string
	Single       bool

	// ExemptFromStats is set by the binder when this reaction subscribes to
	// the statistics event type itself, breaking the
	// "statistics cause more statistics" feedback loop (spec §4.10).
	ExemptFromStats bool

	hooks Hooks

	enabled     atomic.Bool
	activeCount atomic.Int64

	// Unbind detaches this reaction from every store it subscribed to. It
	// is idempotent; calling it more than once is a no-op.
	Unbind func()

	// DefaultPool is the pool a task created from this reaction runs on
	// when no Pool word contributed a hook (spec §5: "a reaction's pool is
	// fixed at declaration, defaulting to a shared 'default' pool"). Left
	// nil by New; callers that bind through a PowerPlant (dsl.Fuse) set it
	// from the owning PowerPlant's configured default pool.
	DefaultPool *topology.PoolDescriptor

	// Stats receives a lifecycle event for every task created from this
	// reaction, unless ExemptFromStats is set. May be nil.
	Stats StatSink

	unbindOnce atomic.Bool
}

// New constructs a Reaction with the given fused hooks. Enabled defaults to
// true.
func New(reactorName, dslSummary, callbackName string, single bool, hooks Hooks) *Reaction {
	r := &Reaction{
		ID:           NextID(),
		ReactorName:  reactorName,
		DSLSummary:   dslSummary,
		CallbackName: callbackName,
		Single:       single,
		hooks:        hooks,
	}
	r.enabled.Store(true)
	return r
}

// Enable turns the reaction on (new tasks may be created for it).
func (r *Reaction) Enable() { r.enabled.Store(true) }

// Disable turns the reaction off without unbinding it. No new tasks will be
// created until Enable is called again.
func (r *Reaction) Disable() { r.enabled.Store(false) }

// Enabled reports whether the reaction currently accepts new tasks.
func (r *Reaction) Enabled() bool { return r.enabled.Load() }

// DoUnbind calls the registered Unbind closure exactly once. Safe to call
// multiple times or concurrently.
func (r *Reaction) DoUnbind() {
	if !r.unbindOnce.CompareAndSwap(false, true) {
		return
	}
	if r.Unbind != nil {
		r.Unbind()
	}
}

// ActiveCount returns the number of tasks for this reaction that are
// currently queued or running.
func (r *Reaction) ActiveCount() int64 { return r.activeCount.Load() }

// CanCreateTask reports whether a new task may be created right now,
// honoring the Single constraint (spec §8 invariant 2 and §9 Open
// Questions: inline emits count against Single too).
func (r *Reaction) CanCreateTask() bool {
	if !r.Enabled() {
		return false
	}
	if r.Single && r.activeCount.Load() > 0 {
		return false
	}
	return true
}

// contextCell holds the per-worker-goroutine "currently running task"
// context described in spec §4.2. Rather than a single process-wide global
// indexed by OS thread id (which Go does not expose portably - see
// DESIGN.md), each worker goroutine owns its own *contextCell and passes it
// explicitly; RunOn below is the sole mutator.
type contextCell struct {
	current atomic.Pointer[Task]
}

// WorkerContext is the per-worker handle a scheduler pool passes into
// RunOn, replacing the "currently-running-task global" design note (§9):
// "workers carry a pointer-sized handle swapped on task entry/exit."
type WorkerContext struct {
	cell contextCell
}

// NewWorkerContext creates a fresh, empty worker context.
func NewWorkerContext() *WorkerContext { return &WorkerContext{} }

// Current returns the task presently running on this worker, or nil.
func (w *WorkerContext) Current() *Task {
	if w == nil {
		return nil
	}
	return w.cell.current.Load()
}
