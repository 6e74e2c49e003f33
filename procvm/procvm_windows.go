//go:build windows

package procvm

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows memory entry points and constants NativeProcess.cpp/MemoryRegion.cpp
// operate against. Grounded the same way backend/local/about_windows.go
// binds kernel32 entry points it needs but that aren't part of the
// minimal golang.org/x/sys/windows surface this module vendors against:
// a lazy DLL + NewProc, called positionally.
var (
	modkernel32 = syscall.NewLazyDLL("kernel32.dll")
	modntdll    = syscall.NewLazyDLL("ntdll.dll")

	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualProtectEx   = modkernel32.NewProc("VirtualProtectEx")
	procReadProcessMemory  = modkernel32.NewProc("ReadProcessMemory")
	procWriteProcessMemory = modkernel32.NewProc("WriteProcessMemory")
	procGetSystemInfo      = modkernel32.NewProc("GetSystemInfo")
	procIsWow64Process     = modkernel32.NewProc("IsWow64Process")

	procNtLockVirtualMemory   = modntdll.NewProc("NtLockVirtualMemory")
	procNtUnlockVirtualMemory = modntdll.NewProc("NtUnlockVirtualMemory")
	procNtSuspendProcess      = modntdll.NewProc("NtSuspendProcess")
	procNtResumeProcess       = modntdll.NewProc("NtResumeProcess")
)

const (
	memCommit    = 0x00001000
	memReserve   = 0x00002000
	memTopDown   = 0x00100000
	pageNoAccess = 0x01

	processAllAccess = 0x1F0FFF
)

// winProtect maps our 7-bit Protection bitmask onto a Win32 PAGE_*
// constant, the inverse of what FileDescriptor.cpp does when it
// translates the other direction.
func winProtect(p Protection) uint32 {
	switch {
	case p&ProtExecute != 0 && p&ProtWrite != 0:
		return 0x40 // PAGE_EXECUTE_READWRITE
	case p&ProtExecute != 0 && p&ProtRead != 0:
		return 0x20 // PAGE_EXECUTE_READ
	case p&ProtExecute != 0:
		return 0x10 // PAGE_EXECUTE
	case p&ProtWrite != 0:
		return 0x04 // PAGE_READWRITE
	case p&ProtRead != 0:
		return 0x02 // PAGE_READONLY
	default:
		return pageNoAccess
	}
}

func protectFromWin(p uint32) Protection {
	switch p &^ 0x100 { // strip PAGE_GUARD, surfaced separately
	case 0x40:
		return ProtExecute | ProtWrite | ProtRead
	case 0x20:
		return ProtExecute | ProtRead
	case 0x10:
		return ProtExecute
	case 0x04:
		return ProtWrite | ProtRead
	case 0x02:
		return ProtRead
	default:
		return ProtNone
	}
}

func allocationGranularity() uintptr {
	var info struct {
		anon1                    [4]byte
		dwPageSize               uint32
		lpMinimumApplicationAddr uintptr
		lpMaximumApplicationAddr uintptr
		dwActiveProcessorMask    uintptr
		dwNumberOfProcessors     uint32
		dwProcessorType          uint32
		dwAllocationGranularity  uint32
		wProcessorLevel          uint16
		wProcessorRevision       uint16
	}
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&info)))
	if info.dwAllocationGranularity == 0 {
		return 64 * 1024
	}
	return uintptr(info.dwAllocationGranularity)
}

// winProcess is the windows nativeProcess backend. It operates against a
// process handle supplied by the caller (the host-process launcher is an
// external collaborator per spec.md §1; this package never calls
// CreateProcess itself).
type winProcess struct {
	handle windows.Handle
	thread windows.Handle
	arch   Architecture
}

// OpenProcess attaches to an already-running host process by pid,
// returning a Process whose Manager is ready to reserve/allocate guest
// memory. threadHandle is the guest's primary thread, used for
// Suspend/Resume.
func OpenProcess(pid uint32, threadHandle uintptr) (*Process, error) {
	h, err := windows.OpenProcess(processAllAccess, false, pid)
	if err != nil {
		return nil, fmt.Errorf("procvm: OpenProcess(%d): %w", pid, err)
	}
	wp := &winProcess{handle: h, thread: windows.Handle(threadHandle), arch: detectArchitecture(h)}
	granularity := allocationGranularity()
	mgr := newManager(wp, granularity, 4096, false)
	return &Process{native: wp, Manager: mgr}, nil
}

func detectArchitecture(h windows.Handle) Architecture {
	var wow64 int32
	ret, _, _ := procIsWow64Process.Call(uintptr(h), uintptr(unsafe.Pointer(&wow64)))
	if ret == 0 {
		return ArchUnknown
	}
	if wow64 != 0 {
		return Arch32
	}
	return Arch64
}

func (p *winProcess) commitSection(at, length uintptr, topDown bool) (uintptr, uintptr, error) {
	flags := uintptr(memCommit | memReserve)
	if topDown {
		flags |= memTopDown
	}
	base, _, e := procVirtualAllocEx.Call(uintptr(p.handle), at, length, flags, pageNoAccess)
	if base == 0 {
		return 0, 0, fmt.Errorf("procvm: VirtualAllocEx: %w", e)
	}
	return base, base, nil // the Win32 address doubles as our section handle
}

func (p *winProcess) protect(base, length uintptr, prot Protection) (Protection, error) {
	var old uint32
	ret, _, e := procVirtualProtectEx.Call(uintptr(p.handle), base, length, uintptr(winProtect(prot)), uintptr(unsafe.Pointer(&old)))
	if ret == 0 {
		return 0, fmt.Errorf("procvm: VirtualProtectEx: %w", e)
	}
	return protectFromWin(old), nil
}

func (p *winProcess) lockPages(base, length uintptr) error {
	regionBase, regionLen := base, length
	ret, _, _ := procNtLockVirtualMemory.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&regionBase)), uintptr(unsafe.Pointer(&regionLen)), 1)
	if ret != 0 {
		return fmt.Errorf("procvm: NtLockVirtualMemory: status 0x%x", ret)
	}
	return nil
}

func (p *winProcess) unlockPages(base, length uintptr) error {
	regionBase, regionLen := base, length
	ret, _, _ := procNtUnlockVirtualMemory.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&regionBase)), uintptr(unsafe.Pointer(&regionLen)), 1)
	if ret != 0 {
		return fmt.Errorf("procvm: NtUnlockVirtualMemory: status 0x%x", ret)
	}
	return nil
}

func (p *winProcess) readMemory(base uintptr, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var nread uintptr
	ret, _, e := procReadProcessMemory.Call(uintptr(p.handle), base, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), uintptr(unsafe.Pointer(&nread)))
	if ret == 0 {
		return int(nread), fmt.Errorf("procvm: ReadProcessMemory: %w", e)
	}
	return int(nread), nil
}

func (p *winProcess) writeMemory(base uintptr, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var nwritten uintptr
	ret, _, e := procWriteProcessMemory.Call(uintptr(p.handle), base, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), uintptr(unsafe.Pointer(&nwritten)))
	if ret == 0 {
		return int(nwritten), fmt.Errorf("procvm: WriteProcessMemory: %w", e)
	}
	return int(nwritten), nil
}

func (p *winProcess) closeSection(handle uintptr) error {
	// handle is the VirtualAllocEx base address; VirtualFreeEx with
	// MEM_RELEASE is the section teardown since sections here are plain
	// committed reservations, not shared file mappings.
	const memRelease = 0x8000
	ret, _, _ := modkernel32.NewProc("VirtualFreeEx").Call(uintptr(p.handle), handle, 0, memRelease)
	if ret == 0 {
		return fmt.Errorf("procvm: VirtualFreeEx failed for section at 0x%x", handle)
	}
	return nil
}

func (p *winProcess) suspend() error {
	ret, _, _ := procNtSuspendProcess.Call(uintptr(p.handle))
	if ret != 0 {
		return fmt.Errorf("procvm: NtSuspendProcess: status 0x%x", ret)
	}
	return nil
}

func (p *winProcess) resume() error {
	ret, _, _ := procNtResumeProcess.Call(uintptr(p.handle))
	if ret != 0 {
		return fmt.Errorf("procvm: NtResumeProcess: status 0x%x", ret)
	}
	return nil
}

func (p *winProcess) terminate(exitCode uint32) error {
	return windows.TerminateProcess(p.handle, exitCode)
}

func (p *winProcess) architecture() Architecture { return p.arch }

func (p *winProcess) release() error {
	if p.thread != 0 {
		windows.CloseHandle(p.thread)
	}
	return windows.CloseHandle(p.handle)
}
