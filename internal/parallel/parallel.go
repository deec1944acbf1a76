// Package parallel provides the fork-join helpers used by the task scheduler.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 8, // Tasks are row-sized, not element-sized.
	}
}

// Serial returns a configuration that always runs sequentially.
func Serial() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForWorkers(n, func(_, i int) { f(i) }, cfg)
}

// ForWorkers executes f(worker, i) for i in [0, n), partitioning the index
// space into contiguous chunks. The worker identifier lets the caller give
// each goroutine its own scratch state; worker 0 is used for the sequential
// fallback.
func ForWorkers(n int, f func(worker, i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers < 2 {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(0, i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	worker := 0
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(w, i)
			}
		}(worker, start, end)
		worker++
	}
	wg.Wait()
}

// MaxWorkers returns the number of distinct worker identifiers ForWorkers
// may use for an index space of size n.
func (cfg Config) MaxWorkers(n int) int {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers < 2 {
		return 1
	}
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	return (n + chunkSize - 1) / chunkSize
}
