package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/picoruby/estalloc/estalloc"
	"github.com/picoruby/estalloc/host"
)

var compareSizeMiB int

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Benchmark TLSF against bump and first-fit baselines",
	Long: `Runs the same mixed alloc/free workload through estalloc.Pool and
through a bump allocator and a naive first-fit scanner, reporting relative
throughput and final free space. TLSF's O(1) bucketed fit is expected to
keep working long after the bump arena is exhausted and the first-fit
scanner has slowed down walking a fragmented free list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompare(compareSizeMiB)
	},
}

func init() {
	compareCmd.Flags().IntVar(&compareSizeMiB, "size", 4, "arena size in MiB for each strategy")
	rootCmd.AddCommand(compareCmd)
}

type strategy interface {
	Alloc(size int) []byte
	Free(block []byte)
	Available() int
	Name() string
}

type tlsfAdapter struct{ p *estalloc.Pool }

func (t tlsfAdapter) Alloc(size int) []byte { return t.p.Malloc(size) }
func (t tlsfAdapter) Free(block []byte)     { t.p.Free(block) }
func (t tlsfAdapter) Available() int        { return int(t.p.TakeStatistics().Free) }
func (t tlsfAdapter) Name() string          { return "tlsf" }

func runCompare(sizeMiB int) error {
	arenaSize := sizeMiB * 1024 * 1024

	region, release, err := host.Acquire(arenaSize)
	if err != nil {
		return fmt.Errorf("acquiring tlsf region: %w", err)
	}
	defer release()
	pool, err := estalloc.New(region)
	if err != nil {
		return fmt.Errorf("constructing tlsf pool: %w", err)
	}

	strategies := []strategy{
		tlsfAdapter{pool},
		newBumpArena(make([]byte, arenaSize)),
		newFirstFitArena(make([]byte, arenaSize)),
	}
	for _, s := range strategies {
		elapsed, ops, finalFree := benchmarkStrategy(s)
		printInfo("%-8s ops=%-8d elapsed=%-12s free=%d\n", s.Name(), ops, elapsed, finalFree)
	}
	return nil
}

const compareOps = 20000

func benchmarkStrategy(s strategy) (elapsed time.Duration, ops int, finalFree int) {
	rng := rand.New(rand.NewSource(7))
	var live [][]byte

	start := time.Now()
	for i := 0; i < compareOps; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			n := rng.Intn(4096) + 1
			b := s.Alloc(n)
			if b != nil {
				live = append(live, b)
			}
		} else {
			idx := rng.Intn(len(live))
			s.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	elapsed = time.Since(start)

	for _, b := range live {
		s.Free(b)
	}
	return elapsed, compareOps, s.Available()
}
