//go:build !unix

package host

import "github.com/bytedance/gopkg/lang/dirtmake"

// acquire falls back to an unzeroed heap allocation where anonymous mmap
// isn't available. dirtmake skips the zero-fill make() would otherwise
// perform on a region the allocator immediately carves up itself.
func acquire(size int) ([]byte, func() error, error) {
	region := dirtmake.Bytes(size, size)
	return region, func() error { return nil }, nil
}
