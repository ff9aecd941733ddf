//go:build unix

package sim

import (
	"syscall"
	"time"
)

const cpuTimeSupported = true

// cpuTime returns the user plus system time consumed by the whole process,
// across all goroutines.
func cpuTime() time.Duration {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}
