// Package namespace implements the seven composable Linux isolation
// domains (mount, cgroup, uts, ipc, user, pid, net) following
// Namespace.cpp's default-construct-all / clone-bitmask-selects-fresh
// pattern: a fresh Namespace gets seven brand-new domains, while a
// cloned Namespace shares each domain with its source unless the
// matching CLONE_NEW* bit says otherwise.
package namespace

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vfs"
)

// ControlGroupNamespace, IpcNamespace, NetworkNamespace, PidNamespace
// and UserNamespace are opaque isolation points: this kernel core only
// needs to share or clone them, not interpret their contents, matching
// the original's own UNREFERENCED_PARAMETER stubs for anything beyond
// identity. UtsNamespace additionally holds the namespace's hostname.
type (
	ControlGroupNamespace struct{ id uint64 }
	IpcNamespace          struct{ id uint64 }
	NetworkNamespace      struct{ id uint64 }
	PidNamespace          struct{ id uint64 }
	UserNamespace         struct{ id uint64 }
	UtsNamespace          struct {
		mu       sync.RWMutex
		hostname string
		domain   string
	}
)

var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Hostname returns the UTS namespace's hostname.
func (u *UtsNamespace) Hostname() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.hostname
}

// SetHostname updates the UTS namespace's hostname.
func (u *UtsNamespace) SetHostname(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hostname = name
}

// mountEntry is one namespace-relative mount point, sorted by Path for
// the longest-prefix-match Lookup below.
type mountEntry struct {
	path  string
	mount vfs.Mount
}

// MountNamespace holds the path -> Mount associations visible within one
// mount namespace.
type MountNamespace struct {
	mu      sync.RWMutex
	entries []mountEntry // kept sorted by path
}

// Mount records mount at path, replacing any existing mount at that
// exact path.
func (m *MountNamespace) Mount(path string, mount vfs.Mount) {
	path = normalizePath(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.path == path {
			m.entries[i].mount = mount
			return
		}
	}
	m.entries = append(m.entries, mountEntry{path: path, mount: mount})
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].path < m.entries[j].path })
}

// Unmount removes the mount recorded at the exact path, reporting
// whether one was found.
func (m *MountNamespace) Unmount(path string) bool {
	path = normalizePath(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.path == path {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the mount with the longest path prefix of path, and the
// sub-path remaining under that mount's root. It performs a binary
// search over the sorted path slice rather than a linear scan, the way
// a path collection kept sorted for prefix queries would.
func (m *MountNamespace) Lookup(path string) (mount vfs.Mount, relative string, ok bool) {
	path = normalizePath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Binary search for the insertion point of path, then walk backward
	// for the longest entry that is actually a prefix of path.
	idx := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].path > path })
	for i := idx - 1; i >= 0; i-- {
		candidate := m.entries[i].path
		if isPathPrefix(candidate, path) {
			return m.entries[i].mount, relativeTo(candidate, path), true
		}
	}
	return nil, "", false
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func isPathPrefix(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func relativeTo(prefix, path string) string {
	if prefix == "/" {
		return strings.TrimPrefix(path, "/")
	}
	rel := strings.TrimPrefix(path, prefix)
	return strings.TrimPrefix(rel, "/")
}

// Namespace bundles the seven isolation domains that define a process
// tree's view of the system.
type Namespace struct {
	CgroupNS *ControlGroupNamespace
	IpcNS    *IpcNamespace
	MountNS  *MountNamespace
	NetNS    *NetworkNamespace
	PidNS    *PidNamespace
	UserNS   *UserNamespace
	UtsNS    *UtsNamespace
}

// New constructs a root Namespace with seven fresh, unshared domains.
func New() *Namespace {
	return &Namespace{
		CgroupNS: &ControlGroupNamespace{id: nextID()},
		IpcNS:    &IpcNamespace{id: nextID()},
		MountNS:  &MountNamespace{},
		NetNS:    &NetworkNamespace{id: nextID()},
		PidNS:    &PidNamespace{id: nextID()},
		UserNS:   &UserNamespace{id: nextID()},
		UtsNS:    &UtsNamespace{},
	}
}

// Clone derives a new Namespace from src: each domain is either a fresh
// instance (if its CLONE_NEW* bit is set in flags) or a shared reference
// to src's domain.
func Clone(src *Namespace, flags uint32) *Namespace {
	n := &Namespace{}

	if flags&uapi.CLONE_NEWCGROUP != 0 {
		n.CgroupNS = &ControlGroupNamespace{id: nextID()}
	} else {
		n.CgroupNS = src.CgroupNS
	}
	if flags&uapi.CLONE_NEWIPC != 0 {
		n.IpcNS = &IpcNamespace{id: nextID()}
	} else {
		n.IpcNS = src.IpcNS
	}
	if flags&uapi.CLONE_NEWNS != 0 {
		n.MountNS = &MountNamespace{}
	} else {
		n.MountNS = src.MountNS
	}
	if flags&uapi.CLONE_NEWNET != 0 {
		n.NetNS = &NetworkNamespace{id: nextID()}
	} else {
		n.NetNS = src.NetNS
	}
	if flags&uapi.CLONE_NEWPID != 0 {
		n.PidNS = &PidNamespace{id: nextID()}
	} else {
		n.PidNS = src.PidNS
	}
	if flags&uapi.CLONE_NEWUSER != 0 {
		n.UserNS = &UserNamespace{id: nextID()}
	} else {
		n.UserNS = src.UserNS
	}
	if flags&uapi.CLONE_NEWUTS != 0 {
		n.UtsNS = &UtsNamespace{}
	} else {
		n.UtsNS = src.UtsNS
	}
	return n
}
