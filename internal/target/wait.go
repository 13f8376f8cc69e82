package target

import (
	"math"
	"time"
)

// WaitMillis converts timeout to the millisecond count WaitForSingleObject takes.
// It rounds up and stays below INFINITE (0xFFFFFFFF).
func WaitMillis(timeout time.Duration) uint32 {
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	switch {
	case ms < 0:
		return 0
	case ms >= math.MaxUint32:
		return math.MaxUint32 - 1
	}
	return uint32(ms)
}
