package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/picoruby/estalloc/estalloc"
	"github.com/picoruby/estalloc/host"
)

var (
	stressOps     int
	stressSeed    int64
	stressMaxSize int
	stressPoolMiB int
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a mixed-operation random workload against a pool",
	Long: `Drives malloc/calloc/realloc/permalloc/free with the 40/20/15/5/20
bias across --ops operations, checking SanityCheck and live-payload
integrity every 1000 operations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		region, release, err := host.Acquire(stressPoolMiB * 1024 * 1024)
		if err != nil {
			return fmt.Errorf("acquiring region: %w", err)
		}
		defer release()

		p, err := estalloc.New(region, estalloc.WithDebug(true))
		if err != nil {
			return fmt.Errorf("constructing pool: %w", err)
		}
		return runStressWorkload(p, stressOps, stressSeed)
	},
}

func init() {
	stressCmd.Flags().IntVar(&stressOps, "ops", 10000, "number of operations to run")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 1, "PRNG seed")
	stressCmd.Flags().IntVar(&stressMaxSize, "max-size", 8*1024, "maximum bytes per malloc/realloc request (calloc and permalloc requests are at most 512 bytes)")
	stressCmd.Flags().IntVar(&stressPoolMiB, "pool-mib", 4, "pool size in MiB")
	rootCmd.AddCommand(stressCmd)
}

type stressLiveBlock struct {
	buf  []byte
	seed byte
}

// runStressWorkload is the S6 mixed random-operation scenario: bias
// 40/20/15/5/20 across malloc/calloc/realloc/permalloc/free, sanity-checking
// every 1000 operations and verifying every live block's payload pattern.
func runStressWorkload(p *estalloc.Pool, ops int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	var live []stressLiveBlock

	for i := 0; i < ops; i++ {
		pick := rng.Intn(100)
		switch {
		case pick < 40:
			n := rng.Intn(stressMaxSize) + 1
			b := p.Malloc(n)
			if b != nil {
				s := byte(rng.Intn(256))
				for j := range b {
					b[j] = s
				}
				live = append(live, stressLiveBlock{b, s})
			}
		case pick < 60:
			n := rng.Intn(512) + 1
			b := p.Calloc(n, 1)
			if b != nil {
				live = append(live, stressLiveBlock{b, 0})
			}
		case pick < 75:
			if len(live) == 0 {
				continue
			}
			idx := rng.Intn(len(live))
			n := rng.Intn(stressMaxSize) + 1
			q := p.Realloc(live[idx].buf, n)
			if q != nil {
				for j := range q {
					q[j] = live[idx].seed
				}
				live[idx].buf = q
			}
		case pick < 80:
			n := rng.Intn(512) + 1
			p.Permalloc(n)
		default:
			if len(live) == 0 {
				continue
			}
			idx := rng.Intn(len(live))
			p.Free(live[idx].buf)
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		if i%1000 != 999 {
			continue
		}
		if code := p.SanityCheck(); code != 0 {
			return fmt.Errorf("sanity check failed with code 0x%x after %d ops", code, i+1)
		}
		for _, lb := range live {
			for _, v := range lb.buf {
				if v != lb.seed {
					return fmt.Errorf("payload corruption: want %#x got %#x after %d ops", lb.seed, v, i+1)
				}
			}
		}
		printVerbose("after %d ops: sanity=0 live=%d\n", i+1, len(live))
	}

	for _, lb := range live {
		p.Free(lb.buf)
	}
	printInfo("stress: PASS  ops=%d seed=%d\n", ops, seed)
	return nil
}
