package spatial

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Minimum number of points handed to a single worker.
const minBlockSize = 256

// Split [0, n) into contiguous blocks and process them in parallel. Blocks
// have no cross-dependencies; fn must only write to its own block.
func forEachBlock(n, workers int, fn func(start, end int) error) error {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	blockSize := (n + workers - 1) / workers
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += blockSize {
		start, end := start, start+blockSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			return fn(start, end)
		})
	}
	return g.Wait()
}
