package reaction

import (
	"fmt"
	"time"

	"github.com/nuclear-go/nuclear/topology"
)

// StatKind enumerates the lifecycle events a task can report (spec
// §4.10).
type StatKind int

const (
	StatCreated StatKind = iota
	StatStarted
	StatFinished
	StatBlocked
	StatMissingData
)

func (k StatKind) String() string {
	switch k {
	case StatCreated:
		return "created"
	case StatStarted:
		return "started"
	case StatFinished:
		return "finished"
	case StatBlocked:
		return "blocked"
	case StatMissingData:
		return "missing_data"
	default:
		return "unknown"
	}
}

// StatEvent is one lifecycle record for a task (spec §4.10: "simulated
// time, steady time, per-thread CPU time, the task's pool and thread id").
// ThreadID here names the WorkerContext that ran (or would have run) the
// task, not an OS thread id - see DESIGN.md for why.
type StatEvent struct {
	Kind         StatKind
	ReactionID   ID
	TaskID       TaskID
	ReactorName  string
	CallbackName string
	Pool         *topology.PoolDescriptor
	Cause        Cause
	Wall         time.Time
	Steady       time.Time
	CPU          time.Duration
	ThreadID     uint64
	Err          error
}

// StatSink receives a StatEvent. Implementations must not block.
type StatSink func(StatEvent)

// Task is one invocation of a Reaction (spec §3 "ReactionTask").
type Task struct {
	ID         TaskID
	ReactionID ID
	Cause      Cause

	Args []any

	Priority int
	Pool     *topology.PoolDescriptor
	Groups   []*topology.GroupDescriptor

	reaction *Reaction

	CreatedAt time.Time
	StartedAt time.Time
	Finished  time.Time
	Err       error

	// ThreadID is filled in by the scheduler pool that actually runs this
	// task, for statistics purposes.
	ThreadID uint64
}

// Reaction returns the declaring reaction for this task.
func (t *Task) Reaction() *Reaction { return t.reaction }

// CPUTimeFunc returns an estimate of CPU time consumed since the process
// started. Go has no portable, allocation-free way to read per-goroutine
// CPU time (unlike the per-thread getrusage calls the original C++ uses),
// so this is a pluggable seam defaulting to a zero-cost stub; see
// DESIGN.md for the justification. Tests may override it.
var CPUTimeFunc = func() time.Duration { return 0 }

// NewTask implements spec §4.2 steps 1-3: allocate an id, capture cause
// from the currently running task (if any), call the fused Get hook to
// materialize inputs *now*, and report the outcome via the reaction's
// StatSink.
//
// Returns (task, true) on success, ready to be scheduled. Returns
// (nil, false) when Get reported missing required data (a MISSING_DATA
// event is emitted and no task is created), when Precondition vetoed the
// task (a BLOCKED event is emitted), or when the reaction's Single/enabled
// constraints forbid creating a new task right now (silently, matching
// spec §3: "at most one in-flight or queued task at any time").
func (r *Reaction) NewTask(current *Task) (*Task, bool) {
	if !r.CanCreateTask() {
		return nil, false
	}

	task := &Task{
		ID:         NextTaskID(),
		ReactionID: r.ID,
		reaction:   r,
		CreatedAt:  time.Now(),
	}
	if current != nil {
		task.Cause = Cause{ReactionID: current.ReactionID, TaskID: current.ID}
	}

	if r.hooks.Get != nil {
		args, ok := r.hooks.Get(task)
		if !ok {
			r.emitStat(StatEvent{
				Kind:         StatMissingData,
				ReactionID:   r.ID,
				TaskID:       task.ID,
				ReactorName:  r.ReactorName,
				CallbackName: r.CallbackName,
				Cause:        task.Cause,
				Wall:         time.Now(),
				Steady:       time.Now(),
				CPU:          CPUTimeFunc(),
			})
			return nil, false
		}
		task.Args = args
	}

	task.Priority = normalPriority
	if r.hooks.Priority != nil {
		task.Priority = r.hooks.Priority(task)
	}
	if r.hooks.Groups != nil {
		task.Groups = r.hooks.Groups(task)
	}
	if r.hooks.Pool != nil {
		task.Pool = r.hooks.Pool(task)
	} else if r.DefaultPool != nil {
		task.Pool = r.DefaultPool
	} else {
		task.Pool = topology.MainPool
	}

	if r.hooks.Precondition != nil && !r.hooks.Precondition(task) {
		r.emitStat(StatEvent{
			Kind:         StatBlocked,
			ReactionID:   r.ID,
			TaskID:       task.ID,
			ReactorName:  r.ReactorName,
			CallbackName: r.CallbackName,
			Pool:         task.Pool,
			Cause:        task.Cause,
			Wall:         time.Now(),
			Steady:       time.Now(),
			CPU:          CPUTimeFunc(),
		})
		return nil, false
	}

	r.activeCount.Add(1)

	r.emitStat(StatEvent{
		Kind:         StatCreated,
		ReactionID:   r.ID,
		TaskID:       task.ID,
		ReactorName:  r.ReactorName,
		CallbackName: r.CallbackName,
		Pool:         task.Pool,
		Cause:        task.Cause,
		Wall:         task.CreatedAt,
		Steady:       task.CreatedAt,
		CPU:          CPUTimeFunc(),
	})

	if r.hooks.Reschedule != nil {
		rescheduled, forward := r.hooks.Reschedule(task)
		if !forward {
			// Consumed by the word (e.g. queued on a private Sync FIFO for
			// later resubmission). The task remains "in-flight" for Single
			// accounting purposes until whatever holds it runs it.
			return nil, false
		}
		task = rescheduled
	}

	return task, true
}

// normalPriority is the default priority assigned when no word in the
// reaction's DSL composition contributes one (spec §4.1: "default NORMAL
// if none").
const normalPriority = 0

func (r *Reaction) emitStat(ev StatEvent) {
	if r.ExemptFromStats || r.Stats == nil {
		return
	}
	r.Stats(ev)
}

// RunOn executes the task's callback on the given worker context,
// implementing spec §4.2's Run method: record started, call fused PreRun,
// invoke the callback with captured args, call fused PostRun, record
// finished, call fused Postcondition. Panics from the callback are
// recovered and stored as the task's error (spec §7 CallbackException);
// PostRun/Postcondition still run.
func (t *Task) RunOn(ctx *WorkerContext, threadID uint64) {
	prev := ctx.cell.current.Load()
	ctx.cell.current.Store(t)
	defer ctx.cell.current.Store(prev)

	t.ThreadID = threadID
	t.StartedAt = time.Now()
	r := t.reaction

	r.emitStat(StatEvent{
		Kind:         StatStarted,
		ReactionID:   r.ID,
		TaskID:       t.ID,
		ReactorName:  r.ReactorName,
		CallbackName: r.CallbackName,
		Pool:         t.Pool,
		Cause:        t.Cause,
		Wall:         t.StartedAt,
		Steady:       t.StartedAt,
		CPU:          CPUTimeFunc(),
		ThreadID:     threadID,
	})

	if r.hooks.PreRun != nil {
		r.hooks.PreRun(t)
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				if err, ok := rec.(error); ok {
					t.Err = err
				} else {
					t.Err = fmt.Errorf("nuclear: reaction panic: %v", rec)
				}
			}
		}()
		if r.hooks.Callback != nil {
			t.Err = r.hooks.Callback(t, t.Args)
		}
	}()

	if r.hooks.PostRun != nil {
		r.hooks.PostRun(t)
	}

	t.Finished = time.Now()
	r.activeCount.Add(-1)

	r.emitStat(StatEvent{
		Kind:         StatFinished,
		ReactionID:   r.ID,
		TaskID:       t.ID,
		ReactorName:  r.ReactorName,
		CallbackName: r.CallbackName,
		Pool:         t.Pool,
		Cause:        t.Cause,
		Wall:         t.Finished,
		Steady:       t.Finished,
		CPU:          CPUTimeFunc(),
		ThreadID:     threadID,
		Err:          t.Err,
	})

	if r.hooks.Postcondition != nil {
		r.hooks.Postcondition(t)
	}
}
