//go:build !windows

package streamreader

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps the first size bytes of f read-only, the way
// CompressedFileReader.cpp maps a guest file into the host process
// before sniffing its header. A zero-length file maps to nil with a
// no-op unmap, since mmap itself rejects a zero-length mapping.
func mmapFile(f *os.File, size int64) ([]byte, func() error, error) {
	if size == 0 {
		return nil, func() error { return nil }, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
