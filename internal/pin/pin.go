// Package pin pins the calling goroutine's OS thread to a single CPU and
// raises its scheduling priority for the duration of a measurement run,
// the way the teacher's benchmark worker routine pins itself before timing
// packet handling (modules/balancer/bench/go/bench.go: runtime.LockOSThread
// + unix.SchedSetaffinity + unix.Setpriority). A nanosecond-resolution
// benchmark is sensitive to scheduler noise, so both the Writer's and the
// Reader's single measurement goroutine may opt into this.
package pin

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// ToCPU locks the current goroutine to its OS thread, restricts that
// thread to cpu, and raises its scheduling priority. It must be called
// from the goroutine that will run the measurement loop, before the loop
// starts; the caller is responsible for calling runtime.UnlockOSThread
// when the run ends (or for simply letting the process exit).
func ToCPU(cpu int) (tid int, err error) {
	runtime.LockOSThread()

	tid = unix.Gettid()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return 0, fmt.Errorf("pin: set affinity to cpu %d: %w", cpu, err)
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, -20); err != nil {
		runtime.UnlockOSThread()
		return 0, fmt.Errorf("pin: set priority: %w", err)
	}

	return tid, nil
}
