package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picoruby/estalloc/estalloc"
	"github.com/picoruby/estalloc/host"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario <name>",
	Short: "Run one end-to-end allocator scenario and report pass/fail",
	Long: `Runs one of the named scenarios (s1..s7) against a freshly acquired
1 MiB region and reports whether its invariants held, along with the final
Stats snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(args[0])
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

var scenarios = map[string]func(p *estalloc.Pool) error{
	"s1": scenarioS1,
	"s2": scenarioS2,
	"s3": scenarioS3,
	"s4": scenarioS4,
	"s5": scenarioS5,
	"s6": scenarioS6,
	"s7": scenarioS7,
}

func runScenario(name string) error {
	fn, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q (known: s1..s7)", name)
	}

	region, release, err := host.Acquire(1024 * 1024)
	if err != nil {
		return fmt.Errorf("acquiring region: %w", err)
	}
	defer release()

	p, err := estalloc.New(region, estalloc.WithDebug(true))
	if err != nil {
		return fmt.Errorf("constructing pool: %w", err)
	}

	printVerbose("running %s against a %d byte pool\n", name, len(region))
	if err := fn(p); err != nil {
		printError("%s: FAIL: %v\n", name, err)
		return err
	}

	stats := p.TakeStatistics()
	printInfo("%s: PASS  total=%d used=%d free=%d frag=%d\n", name, stats.Total, stats.Used, stats.Free, stats.Frag)
	return nil
}

func scenarioS1(p *estalloc.Pool) error {
	stats := p.TakeStatistics()
	if stats.Used != 0 {
		return fmt.Errorf("expected a freshly initialized pool to report used=0, got %d", stats.Used)
	}
	if stats.Free != stats.Total {
		return fmt.Errorf("expected free == total on init, got free=%d total=%d", stats.Free, stats.Total)
	}
	if stats.Frag > 1 {
		return fmt.Errorf("expected frag 0 or 1 on init, got %d", stats.Frag)
	}
	return nil
}

func scenarioS2(p *estalloc.Pool) error {
	b := p.Malloc(100)
	if b == nil {
		return fmt.Errorf("malloc(100) returned nil")
	}
	if usable := p.UsableSize(b); usable < 100 || usable%8 != 0 {
		return fmt.Errorf("usable_size(p)=%d, want >=100 and a multiple of 8", usable)
	}
	for i := range b {
		b[i] = 0xAA
	}
	p.Free(b)
	if code := p.SanityCheck(); code != 0 {
		return fmt.Errorf("sanity check failed after free: 0x%x", code)
	}
	if stats := p.TakeStatistics(); stats.Used != 0 {
		return fmt.Errorf("expected used=0 after freeing the only allocation, got %d", stats.Used)
	}
	return nil
}

func scenarioS3(p *estalloc.Pool) error {
	b1 := p.Malloc(512)
	b2 := p.Malloc(512)
	b3 := p.Malloc(512)
	if b1 == nil || b2 == nil || b3 == nil {
		return fmt.Errorf("expected three 512-byte allocations to succeed")
	}
	p.Free(b2)
	b4 := p.Malloc(512)
	if b4 == nil {
		return fmt.Errorf("re-allocating 512 bytes after freeing the middle block failed")
	}
	if &b2[0] != &b4[0] {
		return fmt.Errorf("expected exact-bucket reuse to return the freed block's address")
	}
	p.Free(b1)
	p.Free(b3)
	p.Free(b4)
	return nil
}

func scenarioS4(p *estalloc.Pool) error {
	b1 := p.Malloc(64)
	b2 := p.Malloc(64)
	b3 := p.Malloc(64) // keeps a used neighbour so the merged block can't vanish into the arena tail
	if b1 == nil || b2 == nil || b3 == nil {
		return fmt.Errorf("expected three 64-byte allocations to succeed")
	}
	before := p.UsableSize(b1)
	p.Free(b1)
	p.Free(b2)

	c := p.Malloc(before*2 + 8)
	if c == nil {
		return fmt.Errorf("expected the coalesced block to satisfy an allocation request spanning both freed blocks")
	}
	p.Free(c)
	p.Free(b3)
	return nil
}

func scenarioS5(p *estalloc.Pool) error {
	b := p.Malloc(100)
	if b == nil {
		return fmt.Errorf("malloc(100) failed")
	}
	origAddr := &b[0]
	q := p.Realloc(b, 50)
	if q == nil {
		return fmt.Errorf("realloc(p, 50) returned nil")
	}
	if &q[0] != origAddr {
		return fmt.Errorf("expected realloc to shrink in place, address changed")
	}
	p.Free(q)
	return nil
}

func scenarioS6(p *estalloc.Pool) error {
	return runStressWorkload(p, 10000, 1)
}

func scenarioS7(p *estalloc.Pool) error {
	perm := p.Permalloc(256)
	if perm == nil {
		return fmt.Errorf("permalloc(256) returned nil")
	}
	var live [][]byte
	for {
		b := p.Malloc(64)
		if b == nil {
			break
		}
		live = append(live, b)
	}
	for _, b := range live {
		p.Free(b)
	}
	p.Free(perm)
	if p.LastError() == "" {
		return fmt.Errorf("expected Free on a permalloc address to set LastError")
	}
	if code := p.SanityCheck(); code != 0 {
		return fmt.Errorf("permalloc Free attempt corrupted the pool: 0x%x", code)
	}
	return nil
}
