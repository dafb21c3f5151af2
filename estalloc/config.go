// Package estalloc implements a deterministic, fixed-pool memory allocator
// over a caller-supplied byte region, using the Two-Level Segregated Fit
// (TLSF) strategy with a bounded first-fit fallback.
//
// The pool is single-threaded: every public method must run to completion
// without interleaving with any other call on the same Pool. Callers
// sharing a Pool across goroutines must provide their own exclusion.
package estalloc

import "fmt"

// AddressWidth selects the width of the in-arena size word, which bounds
// the maximum usable region size.
type AddressWidth int

const (
	// AddressWidth16 uses a 16-bit size word; pools must stay under 64KiB-1.
	AddressWidth16 AddressWidth = iota
	// AddressWidth24 uses a 32-bit size word with a 24-bit usable range
	// (pools up to 16MiB).
	AddressWidth24
)

// Config holds the compile-time knobs of a classic TLSF implementation as
// runtime values. Build one with DefaultConfig and Option funcs.
type Config struct {
	Alignment    int
	AddressWidth AddressWidth
	FLIWidth     int
	SLIWidth     int
	IgnoreLSBs   int
	MinBlockSize int
	Debug        bool
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the settings a classic TLSF implementation ships
// with: 8-byte alignment, 24-bit addressing, FLI width 9, SLI width 3, 5
// ignored low bits.
func DefaultConfig() Config {
	return Config{
		Alignment:    8,
		AddressWidth: AddressWidth24,
		FLIWidth:     9,
		SLIWidth:     3,
		IgnoreLSBs:   5,
	}
}

// WithAlignment sets the block alignment; must be 4 or 8.
func WithAlignment(n int) Option {
	return func(c *Config) { c.Alignment = n }
}

// WithAddressWidth selects the in-arena size word width.
func WithAddressWidth(w AddressWidth) Option {
	return func(c *Config) { c.AddressWidth = w }
}

// WithFLIWidth sets the number of first-level (major) size-class rows.
func WithFLIWidth(n int) Option {
	return func(c *Config) { c.FLIWidth = n }
}

// WithSLIWidth sets the number of second-level sub-classes per row, as a
// bit width (2^n sub-classes).
func WithSLIWidth(n int) Option {
	return func(c *Config) { c.SLIWidth = n }
}

// WithIgnoreLSBs sets how many low bits of size precision are discarded
// for the smallest size classes.
func WithIgnoreLSBs(n int) Option {
	return func(c *Config) { c.IgnoreLSBs = n }
}

// WithMinBlockSize overrides the minimum block size floor. It must still
// be large enough to hold a free block's bookkeeping fields once rounded.
func WithMinBlockSize(n int) Option {
	return func(c *Config) { c.MinBlockSize = n }
}

// WithDebug enables last-error tracking, memory painting and zeroing of the
// arena on Cleanup. Statistics, profiling and SanityCheck work whether or
// not Debug is set.
func WithDebug(enabled bool) Option {
	return func(c *Config) { c.Debug = enabled }
}

func newConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	if c.MinBlockSize == 0 {
		c.MinBlockSize = minBodySize(c)
		// An out-of-range IgnoreLSBs is left for validate to reject.
		if c.IgnoreLSBs >= 0 && c.IgnoreLSBs <= 16 {
			if floor := 1 << c.IgnoreLSBs; floor > c.MinBlockSize {
				c.MinBlockSize = floor
			}
		}
		c.MinBlockSize = alignUp(c.MinBlockSize, c.Alignment)
	}
	return c
}

func (c Config) validate() error {
	if c.Alignment != 4 && c.Alignment != 8 {
		return fmt.Errorf("estalloc: alignment must be 4 or 8, got %d", c.Alignment)
	}
	// FLIWidth is bounded by the 16-bit fli bitmap domain (nlz16 over
	// MSB_BIT1_FLI=0x8000) that find_fit's bitmap descent walks; SLIWidth
	// is bounded by the 8-bit per-row sli bitmap (nlz8, MSB_BIT1_SLI=0x80).
	if c.FLIWidth <= 0 || c.FLIWidth > 14 {
		return fmt.Errorf("estalloc: FLIWidth out of range: %d", c.FLIWidth)
	}
	if c.SLIWidth <= 0 || c.SLIWidth > 3 {
		return fmt.Errorf("estalloc: SLIWidth out of range: %d", c.SLIWidth)
	}
	if c.IgnoreLSBs < 0 || c.IgnoreLSBs > 16 {
		return fmt.Errorf("estalloc: IgnoreLSBs out of range: %d", c.IgnoreLSBs)
	}
	if want := minBodySize(c); c.MinBlockSize < want {
		return fmt.Errorf("estalloc: MinBlockSize %d smaller than free-block body size %d", c.MinBlockSize, want)
	}
	if c.MinBlockSize%c.Alignment != 0 {
		return fmt.Errorf("estalloc: MinBlockSize %d not a multiple of alignment %d", c.MinBlockSize, c.Alignment)
	}
	return nil
}

// sizeWordBytes returns the width, in bytes, of the in-arena size word.
func (c Config) sizeWordBytes() int {
	if c.AddressWidth == AddressWidth16 {
		return 2
	}
	return 4
}

// maxPoolSize returns the largest region this config can address.
func (c Config) maxPoolSize() uint32 {
	if c.AddressWidth == AddressWidth16 {
		return 0xFFFF
	}
	return 0xFFFFFF // 24-bit usable range.
}

func alignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

func alignUp32(n uint32, align int) uint32 {
	mask := uint32(align - 1)
	return (n + mask) &^ mask
}

func alignDown(n, align int) int {
	return n &^ (align - 1)
}
