//go:build !linux

package scheduler

import "runtime"

// lockMainThread pins the calling goroutine to its current OS thread.
// golang.org/x/sys has no portable thread-id syscall outside Linux, so the
// returned id is always 0 here; the affinity guarantee itself comes from
// runtime.LockOSThread alone and needs no platform-specific id to hold.
func lockMainThread() int {
	runtime.LockOSThread()
	return 0
}
