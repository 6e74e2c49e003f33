package supervisor

// ProcessGroup places every guest process spawned by this instance into
// one host-level container so a single Shutdown forcibly terminates all
// of them transitively, the way InstanceService holds one job object
// handle (m_job) for the whole instance's lifetime
// (original_source/src/instance/InstanceService.cpp). The per-OS
// mechanism lives in processgroup_windows.go (a real Win32 job object)
// and processgroup_other.go (a tracked-pid fallback).
type ProcessGroup interface {
	// Add places pid under this group's control.
	Add(pid uint32) error
	// TerminateAll forcibly terminates every process currently in the
	// group.
	TerminateAll() error
	// Close releases the group itself.
	Close() error
}
