package scheduler

import (
	"container/heap"

	"github.com/nuclear-go/nuclear/reaction"
)

// taskHeap is a min-heap over the comparator (priority desc, task_id asc)
// from spec §4.5: "higher priority first, FIFO within a priority band, by
// strictly monotonic task id." Ordering tasks by this comparator and
// always popping the heap's root gives exactly that behavior.
//
// Grounded on the teacher eventloop's timerHeap (container/heap.Interface
// implementation over a plain slice) and the design note §9 replacing the
// original's raw-pointer priority_queue with "a heap keyed by
// (-priority, task_id) holding owning task handles."
type taskHeap []*reaction.Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID < b.ID
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*reaction.Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// priorityQueue wraps taskHeap with the heap package's invariant
// maintenance, giving push/pop in O(log n).
type priorityQueue struct {
	h taskHeap
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (q *priorityQueue) push(t *reaction.Task) {
	heap.Push(&q.h, t)
}

func (q *priorityQueue) pop() *reaction.Task {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*reaction.Task)
}

func (q *priorityQueue) peek() *reaction.Task {
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0]
}

func (q *priorityQueue) len() int { return q.h.Len() }
