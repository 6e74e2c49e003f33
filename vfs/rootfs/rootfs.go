// Package rootfs implements a read-only, single-directory file system
// used as the universal mount anchor, following RootFileSystem.h/.cpp:
// its root directory is the only node that will ever exist within it.
package rootfs

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/djp952/vm-linux-sub000/mountopts"
	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vfs"
	"github.com/djp952/vm-linux-sub000/vmerrno"
)

// MountFlags is the set of standard flags RootFileSystem's mount/remount
// factory accepts; MS_NODEV, MS_NOEXEC and MS_NOSUID are always implied.
const MountFlags = uapi.MS_KERNMOUNT | uapi.MS_NOATIME | uapi.MS_NODIRATIME |
	uapi.MS_RDONLY | uapi.MS_RELATIME | uapi.MS_SILENT | uapi.MS_STRICTATIME

// RemountFlags is the set of standard flags a remount operation accepts.
const RemountFlags = uapi.MS_REMOUNT | uapi.MS_RDONLY

// DefaultMode is the root directory's mode when no mode= option is
// supplied.
const DefaultMode uapi.Mode = uapi.S_IFDIR | 0755

// FileSystem is the shared RootFileSystem instance behind every Mount
// created from it.
type FileSystem struct {
	flags uint32
}

// New constructs a RootFileSystem driver instance.
func New(flags uint32) *FileSystem {
	return &FileSystem{flags: flags & MountFlags}
}

// Mount implements vfs.FileSystem, parsing mode=/uid=/gid= from data and
// producing the single always-present root directory.
func (fs *FileSystem) Mount(flags uint32, data string) (vfs.Mount, error) {
	parsed := mountopts.Parse(flags&MountFlags, data)
	parsed.Flags |= uapi.MS_NODEV | uapi.MS_NOEXEC | uapi.MS_NOSUID

	mode := DefaultMode
	if v := parsed.Arguments.FirstValue("mode"); v != "" {
		n, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return nil, vmerrno.E_INVAL
		}
		mode = uapi.S_IFDIR | (uapi.Mode(n) & uapi.S_IALLUGO)
	}
	var uid, gid uapi.ID
	if v := parsed.Arguments.FirstValue("uid"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, vmerrno.E_INVAL
		}
		uid = uapi.ID(n)
	}
	if v := parsed.Arguments.FirstValue("gid"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, vmerrno.E_INVAL
		}
		gid = uapi.ID(n)
	}

	now := time.Now()
	root := &directory{
		mode:  mode,
		uid:   uid,
		gid:   gid,
		atime: now,
		ctime: now,
		mtime: now,
	}
	return &mount{fs: fs, flags: parsed.Flags, root: root}, nil
}

type mount struct {
	fs    *FileSystem
	flags uint32
	root  *directory
}

func (m *mount) Flags() uint32          { return m.flags }
func (m *mount) Root() vfs.Node         { return m.root }
func (m *mount) FileSystem() vfs.FileSystem { return m.fs }

// Remount applies MS_RDONLY (the only supported remount option) to an
// existing Mount in place.
func Remount(m vfs.Mount, flags uint32) error {
	rm, ok := m.(*mount)
	if !ok {
		return vmerrno.E_INVAL
	}
	if flags&^RemountFlags != 0 {
		return vmerrno.E_INVAL
	}
	if flags&uapi.MS_RDONLY != 0 {
		atomic.StoreUint32(&rm.flags, rm.flags|uapi.MS_RDONLY)
	} else {
		atomic.StoreUint32(&rm.flags, rm.flags&^uapi.MS_RDONLY)
	}
	return nil
}

// directory is RootFileSystem's one and only node.
type directory struct {
	mode  uapi.Mode
	uid   uapi.ID
	gid   uapi.ID
	atime time.Time
	ctime time.Time
	mtime time.Time
}

func (d *directory) Index() uint64   { return 1 }
func (d *directory) Mode() uapi.Mode { return d.mode }
func (d *directory) SetMode(mode uapi.Mode) error {
	d.mode = (d.mode &^ uapi.S_IALLUGO) | (mode & uapi.S_IALLUGO)
	d.ctime = time.Now()
	return nil
}
func (d *directory) UID() uapi.ID { return d.uid }
func (d *directory) SetUID(uid uapi.ID) error {
	d.uid = uid
	d.ctime = time.Now()
	return nil
}
func (d *directory) GID() uapi.ID { return d.gid }
func (d *directory) SetGID(gid uapi.ID) error {
	d.gid = gid
	d.ctime = time.Now()
	return nil
}
func (d *directory) AccessTime() time.Time { return d.atime }
func (d *directory) ChangeTime() time.Time { return d.ctime }
func (d *directory) ModifyTime() time.Time { return d.mtime }
func (d *directory) SetAccessTime(t time.Time) error { d.atime = t; return nil }
func (d *directory) SetModifyTime(t time.Time) error { d.mtime = t; d.ctime = time.Now(); return nil }
func (d *directory) Sync() error                     { return nil }
func (d *directory) SyncData() error                 { return nil }

func (d *directory) CreateDirectory(vfs.Mount, string, uapi.Mode, uapi.ID, uapi.ID) (vfs.Node, error) {
	return nil, vmerrno.E_PERM
}
func (d *directory) CreateFile(vfs.Mount, string, uapi.Mode, uapi.ID, uapi.ID) (vfs.Node, error) {
	return nil, vmerrno.E_PERM
}
func (d *directory) CreateSymlink(vfs.Mount, string, string, uapi.ID, uapi.ID) (vfs.Node, error) {
	return nil, vmerrno.E_PERM
}
func (d *directory) Link(vfs.Mount, vfs.Node, string) error { return vmerrno.E_PERM }
func (d *directory) Unlink(vfs.Mount, string) error         { return vmerrno.E_PERM }

// Lookup always fails: the directory has no children, and the
// Resolver itself handles "." and ".." at the caller's root without
// ever reaching this method (see vfs.Resolver.Resolve), matching
// RootFileSystem::Directory::Lookup's unconditional ENOENT.
func (d *directory) Lookup(m vfs.Mount, name string) (vfs.Node, error) {
	return nil, vmerrno.E_NOENT
}

func (d *directory) Enumerate(m vfs.Mount, visit vfs.DirectoryVisitor) error {
	if err := visit(".", d); err != nil {
		return err
	}
	return visit("..", d)
}

func (d *directory) OpenNode(m vfs.Mount, name string, flags uint32, mode uapi.Mode, uid, gid uapi.ID) (vfs.Node, error) {
	if name == "." || name == "" {
		if flags&uapi.O_DIRECTORY == 0 && flags&(uapi.O_CREAT) != 0 {
			return nil, vmerrno.E_PERM
		}
		return d, nil
	}
	return nil, vmerrno.E_NOENT
}
