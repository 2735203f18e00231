package orchestrator

import "runtime"

// Mode selects how tasks are dispatched.
type Mode int

const (
	// ModeParallel runs tasks on the worker pool.
	ModeParallel Mode = iota
	// ModeSequential runs tasks one at a time in scheduler order.
	ModeSequential
)

const (
	modeParallelLabelConstant   = "parallel"
	modeSequentialLabelConstant = "sequential"
)

// String returns the log label of the mode.
func (mode Mode) String() string {
	if mode == ModeSequential {
		return modeSequentialLabelConstant
	}
	return modeParallelLabelConstant
}

// WorkerPool bounds the number of tasks running at once.
type WorkerPool struct {
	size int
}

// NewWorkerPool sizes a pool to threads, or to the number of CPUs when threads is not positive.
func NewWorkerPool(threads int) WorkerPool {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return WorkerPool{size: threads}
}

// Size reports the maximum number of concurrent tasks.
func (pool WorkerPool) Size() int {
	if pool.size <= 0 {
		return runtime.NumCPU()
	}
	return pool.size
}
