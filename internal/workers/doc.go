/*
Package workers sizes and bounds concurrent work.

Count and ForCPU derive a worker count from GOMAXPROCS, which Go sets
from the container CPU limit, rather than runtime.NumCPU, which reports the
host:

	// 2 CPUs allowed on a 64-core node
	n := workers.ForCPU(8) // 2

Encoding is CPU-bound, so the default number of simultaneous encode jobs is
ForCPU. The MAX_CONCURRENT_JOBS setting overrides it.

Limiter bounds how many jobs run at once. Acquire blocks until a slot is
free or the context ends, and the number of waiting and running jobs is
exported through the metrics package:

	lim := workers.NewLimiter(workers.ForCPU(4))
	if err := lim.Acquire(ctx); err != nil {
		return err // cancelled or deadline exceeded while queued
	}
	defer lim.Release()
*/
package workers
