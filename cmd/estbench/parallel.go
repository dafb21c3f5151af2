package main

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/picoruby/estalloc/estalloc"
	"github.com/picoruby/estalloc/host"
)

var (
	parallelWorkers int
	parallelOps     int
	parallelPoolMiB int
)

var parallelCmd = &cobra.Command{
	Use:   "parallel",
	Short: "Run independent stress workloads across many pools concurrently",
	Long: `TLSF pools aren't safe for concurrent use by multiple goroutines, so
this dispatches one pool per worker rather than sharing one across workers.
Each worker acquires its own region and runs with its own PRNG seed; a
worker's panic is recovered and reported as that worker's failure instead of
taking the whole run down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runParallel(parallelWorkers, parallelOps, parallelPoolMiB)
	},
}

func init() {
	parallelCmd.Flags().IntVar(&parallelWorkers, "workers", 8, "number of independent pools to stress concurrently")
	parallelCmd.Flags().IntVar(&parallelOps, "ops", 5000, "operations per worker")
	parallelCmd.Flags().IntVar(&parallelPoolMiB, "pool-mib", 1, "pool size in MiB, per worker")
	rootCmd.AddCommand(parallelCmd)
}

func runParallel(workers, ops, poolMiB int) error {
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	start := time.Now()
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("worker %d panicked: %v\n%s", i, r, debug.Stack())
				}
			}()
			errs[i] = runWorker(i, ops, poolMiB)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	failures := 0
	for i, err := range errs {
		if err != nil {
			failures++
			printError("worker %d: %v\n", i, err)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d/%d workers failed", failures, workers)
	}
	printInfo("parallel: PASS  workers=%d ops/worker=%d elapsed=%s\n", workers, ops, elapsed)
	return nil
}

func runWorker(id, ops, poolMiB int) error {
	region, release, err := host.Acquire(poolMiB * 1024 * 1024)
	if err != nil {
		return fmt.Errorf("worker %d: acquiring region: %w", id, err)
	}
	defer release()

	p, err := estalloc.New(region, estalloc.WithDebug(true))
	if err != nil {
		return fmt.Errorf("worker %d: constructing pool: %w", id, err)
	}
	return runStressWorkload(p, ops, int64(id)+1)
}
