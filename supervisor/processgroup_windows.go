//go:build windows

package supervisor

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                  = syscall.NewLazyDLL("kernel32.dll")
	procCreateJobObjectW         = modkernel32.NewProc("CreateJobObjectW")
	procAssignProcessToJobObject = modkernel32.NewProc("AssignProcessToJobObject")
	procTerminateJobObject       = modkernel32.NewProc("TerminateJobObject")
)

const errorProcessAborted = 1067

// winJobGroup is a thin wrapper around a Win32 job object, mirroring
// InstanceService's m_job exactly: CreateJobObject at startup,
// AssignProcessToJobObject per spawned guest, TerminateJobObject +
// CloseHandle on shutdown.
type winJobGroup struct {
	handle windows.Handle
}

// NewProcessGroup creates a fresh job object to hold every guest process
// spawned by this supervisor instance.
func NewProcessGroup() (ProcessGroup, error) {
	ret, _, e := procCreateJobObjectW.Call(0, 0)
	if ret == 0 {
		return nil, fmt.Errorf("supervisor: CreateJobObject: %w", e)
	}
	return &winJobGroup{handle: windows.Handle(ret)}, nil
}

func (g *winJobGroup) Add(pid uint32) error {
	h, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		return fmt.Errorf("supervisor: OpenProcess(%d): %w", pid, err)
	}
	defer windows.CloseHandle(h)

	ret, _, e := procAssignProcessToJobObject.Call(uintptr(g.handle), uintptr(h))
	if ret == 0 {
		return fmt.Errorf("supervisor: AssignProcessToJobObject(%d): %w", pid, e)
	}
	return nil
}

func (g *winJobGroup) TerminateAll() error {
	ret, _, e := procTerminateJobObject.Call(uintptr(g.handle), errorProcessAborted)
	if ret == 0 {
		return fmt.Errorf("supervisor: TerminateJobObject: %w", e)
	}
	return nil
}

func (g *winJobGroup) Close() error {
	return windows.CloseHandle(g.handle)
}
