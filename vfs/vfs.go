// Package vfs defines the core Virtual File System contracts —
// FileSystem, Mount, Node and Handle — and the driver-agnostic path
// lookup algorithm every driver shares. It is modeled on the host
// service's VirtualMachine.h nested-interface design: the C++
// multiple-inheritance-style Directory/File/SymbolicLink sub-interfaces
// are flattened here into type assertions against a common Node, the
// idiomatic Go equivalent of "optionally implements" capability checks.
package vfs

import (
	"strings"
	"sync"
	"time"

	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vmerrno"
)

// MaxSymbolicLinks bounds total symlink recursions per lookup.
const MaxSymbolicLinks = 40

// FileSystem is produced by a driver's Mount factory and shared
// (refcounted in spirit, garbage-collected in practice) by every Mount
// that was created from it.
type FileSystem interface {
	// Mount creates a new Mount of this file system with the given
	// standard flags and driver-specific option string.
	Mount(flags uint32, data string) (Mount, error)
}

// Mount is shared by every resolved path that traverses it.
type Mount interface {
	Flags() uint32
	Root() Node
	// FileSystem identifies the owning FileSystem, used to reject a Node
	// presented against a Mount it does not belong to (E_XDEV).
	FileSystem() FileSystem
}

// Node is the metadata surface common to every file, directory and
// symbolic link. Directory, File and SymbolicLink are additional
// capabilities a concrete Node may implement; callers type-assert.
type Node interface {
	Index() uint64
	Mode() uapi.Mode
	SetMode(mode uapi.Mode) error
	UID() uapi.ID
	SetUID(uid uapi.ID) error
	GID() uapi.ID
	SetGID(gid uapi.ID) error

	AccessTime() time.Time
	ChangeTime() time.Time
	ModifyTime() time.Time
	SetAccessTime(t time.Time) error
	SetModifyTime(t time.Time) error

	Sync() error
	SyncData() error
}

// DirectoryVisitor is called once per enumerated directory entry.
type DirectoryVisitor func(name string, node Node) error

// Directory is the extended capability of a Node whose type is
// uapi.NodeDir.
type Directory interface {
	Node
	CreateDirectory(mount Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (Node, error)
	CreateFile(mount Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (Node, error)
	CreateSymlink(mount Mount, name, target string, uid, gid uapi.ID) (Node, error)
	Link(mount Mount, node Node, name string) error
	Unlink(mount Mount, name string) error
	Lookup(mount Mount, name string) (Node, error)
	Enumerate(mount Mount, visit DirectoryVisitor) error
	// OpenNode combines create-or-open semantics honoring O_CREAT, O_EXCL,
	// O_TRUNC, O_DIRECTORY, O_PATH and O_NOATIME.
	OpenNode(mount Mount, name string, flags uint32, mode uapi.Mode, uid, gid uapi.ID) (Node, error)
}

// File is the extended capability of a Node whose type is uapi.NodeRegular.
type File interface {
	Node
	ReadAt(mount Mount, off int64, whence int, buf []byte) (int, error)
	WriteAt(mount Mount, off int64, whence int, buf []byte) (int, error)
	Seek(mount Mount, off int64, whence int) (int64, error)
	Length(mount Mount) (int64, error)
	SetLength(mount Mount, length int64) error
}

// SymbolicLink is the extended capability of a Node whose type is
// uapi.NodeSymlink.
type SymbolicLink interface {
	Node
	Target() (string, error)
}

// Handle is a caller's open reference to a Node, carrying its own
// cursor and flag state. Duplicating a Handle copies the node and the
// current cursor position and clears O_CLOEXEC on the copy; the cursor
// is not shared, so later reads, writes and seeks on one Handle do not
// move the other's.
type Handle struct {
	mu     sync.Mutex
	Mount  Mount
	Node   Node
	Flags  uint32
	cursor int64
}

// NewHandle constructs a Handle over node within mount, storing the
// Linux O_* flags as given, with the cursor at 0.
func NewHandle(mount Mount, node Node, flags uint32) *Handle {
	return &Handle{Mount: mount, Node: node, Flags: flags}
}

// AccessMode extracts O_ACCMODE from the handle's flags.
func (h *Handle) AccessMode() uint32 { return h.Flags & uapi.O_ACCMODE }

func (h *Handle) allowsRead() bool {
	m := h.AccessMode()
	return m == uapi.O_RDONLY || m == uapi.O_RDWR
}

func (h *Handle) allowsWrite() bool {
	m := h.AccessMode()
	return m == uapi.O_WRONLY || m == uapi.O_RDWR
}

// Duplicate returns a new Handle over this one's node, starting at its
// current cursor position, with O_CLOEXEC cleared as dup(2) does. The
// two Handles keep separate cursors from then on.
func (h *Handle) Duplicate() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &Handle{Mount: h.Mount, Node: h.Node, Flags: h.Flags &^ uapi.O_CLOEXEC, cursor: h.cursor}
}

// Read reads from the handle's File capability at the current cursor,
// advancing it. O_PATH handles always fail with E_ACCES.
func (h *Handle) Read(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.Flags&uapi.O_PATH != 0 {
		return 0, vmerrno.E_ACCES
	}
	if !h.allowsRead() {
		return 0, vmerrno.E_ACCES
	}
	f, ok := h.Node.(File)
	if !ok {
		return 0, vmerrno.E_ISDIR
	}
	n, err := f.ReadAt(h.Mount, h.cursor, uapi.SEEK_SET, buf)
	h.cursor += int64(n)
	return n, err
}

// Write writes to the handle's File capability at the current cursor,
// advancing it. O_APPEND is honored by seeking to end-of-file first.
func (h *Handle) Write(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.Flags&uapi.O_PATH != 0 {
		return 0, vmerrno.E_ACCES
	}
	if !h.allowsWrite() {
		return 0, vmerrno.E_ACCES
	}
	f, ok := h.Node.(File)
	if !ok {
		return 0, vmerrno.E_ISDIR
	}
	whence := uapi.SEEK_SET
	off := h.cursor
	if h.Flags&uapi.O_APPEND != 0 {
		whence = uapi.SEEK_END
		off = 0
	}
	n, err := f.WriteAt(h.Mount, off, whence, buf)
	if err == nil {
		if h.Flags&uapi.O_APPEND != 0 {
			if length, lenErr := f.Length(h.Mount); lenErr == nil {
				h.cursor = length
			} else {
				h.cursor += int64(n)
			}
		} else {
			h.cursor += int64(n)
		}
	}
	return n, err
}

// Seek repositions the handle's cursor. whence == SEEK_END is resolved
// against the File's current length plus offset, fixing the original
// FileDescriptor::AdjustPosition bug that rejected SEEK_END outright.
func (h *Handle) Seek(off int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.Node.(File)
	if !ok {
		return 0, vmerrno.E_ISDIR
	}

	switch whence {
	case uapi.SEEK_SET:
		if off < 0 {
			return 0, vmerrno.E_INVAL
		}
		h.cursor = off
	case uapi.SEEK_CUR:
		newPos := h.cursor + off
		if newPos < 0 {
			return 0, vmerrno.E_INVAL
		}
		h.cursor = newPos
	case uapi.SEEK_END:
		length, err := f.Length(h.Mount)
		if err != nil {
			return 0, err
		}
		newPos := length + off
		if newPos < 0 {
			return 0, vmerrno.E_INVAL
		}
		h.cursor = newPos
	default:
		return 0, vmerrno.E_INVAL
	}
	return h.cursor, nil
}

// Position reports the handle's current cursor without moving it.
func (h *Handle) Position() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Lookup describes the outcome of a successful path resolution.
type Lookup struct {
	Mount      Mount
	Node       Node
	ParentPath string
}

// MountTable is the minimal mount-table surface the Resolver needs to
// detect a mount-point crossing; namespace.MountNamespace satisfies it
// structurally without vfs importing namespace.
type MountTable interface {
	Lookup(path string) (mount Mount, relative string, ok bool)
}

// Resolver carries the path lookup algorithm as a standalone,
// namespace-agnostic component so RootFS, HostFS and any future driver
// share one implementation, the way rclone's fs/walk is independent of
// any one backend.
type Resolver struct {
	// RootMount and RootNode anchor lookups that don't supply their own
	// starting directory, and bound how far ".." may travel.
	RootMount Mount
	RootNode  Node
	// Mounts, if set, is consulted after each component so the walk can
	// switch to a mount's root Node when the traversal crosses one.
	Mounts MountTable
}

// ResolveOptions controls terminal-component symlink following and the
// directory a lookup starts from.
type ResolveOptions struct {
	NoFollow bool // O_NOFOLLOW: don't dereference a terminal symlink
	Start    Node // optional starting directory; defaults to RootNode
	StartMnt Mount

	links *int // symlinks followed so far, shared with nested resolutions
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve walks path component by component starting at opts.Start (or
// r.RootNode), handling "." and ".." (never past the root), following
// symbolic links up to MaxSymbolicLinks times, and switching to a
// mount's root Node whenever the walk crosses a mount point.
func (r *Resolver) Resolve(path string, opts ResolveOptions) (Lookup, error) {
	mount := opts.StartMnt
	node := opts.Start
	if node == nil {
		mount, node = r.RootMount, r.RootNode
	}
	if mount == nil {
		mount = r.RootMount
	}

	components := splitPath(path)
	symlinks := opts.links
	if symlinks == nil {
		symlinks = new(int)
	}
	currentPath := "/"
	parentPath := "/"

	crossMountIfAny := func() {
		if r.Mounts == nil {
			return
		}
		if crossed, _, ok := r.Mounts.Lookup(currentPath); ok {
			mount = crossed
			node = crossed.Root()
		}
	}

	for i := 0; i < len(components); i++ {
		name := components[i]
		isLast := i == len(components)-1

		switch name {
		case ".":
			continue
		case "..":
			dir, ok := node.(Directory)
			if !ok {
				return Lookup{}, vmerrno.E_NOTDIR
			}
			if node == r.RootNode {
				continue // never travel past the caller's root
			}
			parent, err := dir.Lookup(mount, "..")
			if err == nil {
				node = parent
			}
			currentPath = parentDir(currentPath)
			continue
		}

		dir, ok := node.(Directory)
		if !ok {
			return Lookup{}, vmerrno.E_NOTDIR
		}
		child, err := dir.Lookup(mount, name)
		if err != nil {
			return Lookup{}, err
		}
		currentPath = joinPath(currentPath, name)

		if link, ok := child.(SymbolicLink); ok && uapi.TypeOf(child.Mode()) == uapi.NodeSymlink && (!isLast || !opts.NoFollow) {
			*symlinks++
			if *symlinks > MaxSymbolicLinks {
				return Lookup{}, vmerrno.E_LOOP
			}
			target, err := link.Target()
			if err != nil {
				return Lookup{}, err
			}
			startMount, startNode := mount, node
			if strings.HasPrefix(target, "/") {
				startMount, startNode = r.RootMount, r.RootNode
			}
			sub, err := r.Resolve(target, ResolveOptions{Start: startNode, StartMnt: startMount, links: symlinks})
			if err != nil {
				return Lookup{}, err
			}
			mount, node = sub.Mount, sub.Node
		} else {
			node = child
		}

		crossMountIfAny()
		if !isLast {
			parentPath = currentPath
		}
	}

	return Lookup{Mount: mount, Node: node, ParentPath: parentPath}, nil
}

func parentDir(p string) string {
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

func joinPath(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// ShouldUpdateAccessTime implements the atime policy of relatime(7):
// MS_NOATIME and O_NOATIME short-circuit to false; MS_STRICTATIME always
// updates; otherwise the default (relatime) updates only if the previous
// atime is already stale (>24h) or no newer than the current ctime/mtime.
func ShouldUpdateAccessTime(mountFlags, handleFlags uint32, prevAtime, ctime, mtime time.Time, now time.Time) bool {
	if handleFlags&uapi.O_NOATIME != 0 {
		return false
	}
	if mountFlags&uapi.MS_NOATIME != 0 {
		return false
	}
	if mountFlags&uapi.MS_STRICTATIME != 0 {
		return true
	}
	if now.Sub(prevAtime) > 24*time.Hour {
		return true
	}
	return !prevAtime.After(ctime) || !prevAtime.After(mtime)
}

// CheckPermission applies the classic rwx x {user,group,other} triple
// against the effective uid/gid of the caller. CAP_DAC_OVERRIDE always
// grants, matching the capability stub's "always grants" contract.
func CheckPermission(mode uapi.Mode, ownerUID, ownerGID, callerUID, callerGID uapi.ID, want uapi.Mode, capabilities uint64) error {
	if capabilities&(1<<uapi.CAP_DAC_OVERRIDE) != 0 {
		return nil
	}
	var bits uapi.Mode
	switch {
	case callerUID == ownerUID:
		bits = (mode >> 6) & 0x7
	case callerGID == ownerGID:
		bits = (mode >> 3) & 0x7
	default:
		bits = mode & 0x7
	}
	if bits&want != want {
		return vmerrno.E_ACCES
	}
	return nil
}

// OpenDisposition is the creation disposition and write-through
// requirements open_node must honor, as TranslateOpenFlags derives them
// from Linux O_* flags.
type OpenDisposition struct {
	Create      bool
	Exclusive   bool
	Truncate    bool
	DirectoryOnly bool
	PathOnly    bool
	NoAtime     bool
	WriteThrough bool // O_DIRECT | O_DSYNC | O_SYNC
}

// TranslateOpenFlags decodes the subset of O_* flags open_node cares
// about beyond the access mode itself.
func TranslateOpenFlags(flags uint32) OpenDisposition {
	return OpenDisposition{
		Create:        flags&uapi.O_CREAT != 0,
		Exclusive:     flags&uapi.O_EXCL != 0,
		Truncate:      flags&uapi.O_TRUNC != 0,
		DirectoryOnly: flags&uapi.O_DIRECTORY != 0,
		PathOnly:      flags&uapi.O_PATH != 0,
		NoAtime:       flags&uapi.O_NOATIME != 0,
		WriteThrough:  flags&(uapi.O_DIRECT|uapi.O_DSYNC|uapi.O_SYNC) != 0,
	}
}
