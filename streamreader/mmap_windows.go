//go:build windows

package streamreader

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// CreateFileMappingW/MapViewOfFile/UnmapViewOfFile aren't part of this
// module's minimal golang.org/x/sys/windows surface, so they're bound
// the same way procvm_windows.go reaches Win32 APIs outside that
// surface: a lazy DLL + NewProc, called positionally.
var (
	modkernel32            = syscall.NewLazyDLL("kernel32.dll")
	procCreateFileMappingW = modkernel32.NewProc("CreateFileMappingW")
	procMapViewOfFile      = modkernel32.NewProc("MapViewOfFile")
	procUnmapViewOfFile    = modkernel32.NewProc("UnmapViewOfFile")
)

const (
	pageReadonly = 0x02
	fileMapRead  = 0x0004
)

// mmapFile memory-maps the first size bytes of f read-only, the way
// CompressedFileReader.cpp maps a guest file into the host process
// before sniffing its header.
func mmapFile(f *os.File, size int64) ([]byte, func() error, error) {
	if size == 0 {
		return nil, func() error { return nil }, nil
	}

	h, _, e := procCreateFileMappingW.Call(f.Fd(), 0, pageReadonly, 0, 0, 0)
	if h == 0 {
		return nil, nil, fmt.Errorf("streamreader: CreateFileMappingW: %w", e)
	}
	handle := syscall.Handle(h)

	addr, _, e := procMapViewOfFile.Call(h, fileMapRead, 0, 0, uintptr(size))
	if addr == 0 {
		syscall.CloseHandle(handle)
		return nil, nil, fmt.Errorf("streamreader: MapViewOfFile: %w", e)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	closeFn := func() error {
		procUnmapViewOfFile.Call(addr)
		return syscall.CloseHandle(handle)
	}
	return data, closeFn, nil
}
