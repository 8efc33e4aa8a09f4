package workers

import (
	"runtime"
)

// Count returns a worker count of multiplier per available CPU, at least 1.
// It respects container CPU limits via GOMAXPROCS.
//
// The limit parameter caps the result. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
