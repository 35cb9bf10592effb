//go:build linux

package scheduler

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// lockMainThread pins the calling goroutine to its current OS thread for
// the remainder of RunMain and returns the underlying OS thread id, so the
// main-pool affinity guarantee (spec §4.5) can be confirmed rather than
// merely assumed: a process that later observes more than one distinct id
// from successive RunMain calls has a bug in the caller, not here.
func lockMainThread() int {
	runtime.LockOSThread()
	return unix.Gettid()
}
