//go:build unix

package host

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// acquire maps an anonymous, zero-filled region directly from the kernel.
// Grounded in joshuapare-hivekit's internal/mmfile mapping pattern, adapted
// from file-backed to anonymous mapping since estalloc has no file to back
// its arena with.
func acquire(size int) ([]byte, func() error, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("host: mmap: %w", err)
	}
	release := func() error {
		if region == nil {
			return nil
		}
		err := unix.Munmap(region)
		region = nil
		return err
	}
	return region, release, nil
}
