// Package host provides the "obtain a backing region" collaborator that
// estalloc itself deliberately stays free of: acquiring a page-aligned
// []byte from the OS and recycling those regions across repeated pool
// construction so a benchmark driver doesn't pay acquisition cost per trial.
package host

import "fmt"

// Acquire reserves size bytes for use as an estalloc backing region. The
// returned release func must be called exactly once when the region is no
// longer needed; it never panics on a nil region.
func Acquire(size int) (region []byte, release func() error, err error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("host: size must be positive, got %d", size)
	}
	return acquire(size)
}
