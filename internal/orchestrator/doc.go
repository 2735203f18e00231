// Package orchestrator dispatches repository pipelines over a bounded worker pool
// and folds their timings back into the inventory.
package orchestrator
