//go:build !unix

package sim

import "time"

const cpuTimeSupported = false

func cpuTime() time.Duration { return 0 }
