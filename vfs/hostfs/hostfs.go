// Package hostfs projects a subtree of the host's file system as a VFS
// driver, following HostFileSystem.cpp/.h: live metadata synthesis on
// every access, an explicit host-error mapping table, and an optional
// sandbox containment check. It borrows the Go-idiomatic shape of
// backend/local/local.go (os.Stat/os.Open/*os.File) rather than the
// original's native Win32 handle calls, since this driver's target is
// POSIX-shaped regardless of host OS.
package hostfs

import (
	"errors"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/djp952/vm-linux-sub000/mountopts"
	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vfs"
	"github.com/djp952/vm-linux-sub000/vmerrno"
	"golang.org/x/text/unicode/norm"
)

// syntheticDirMode and syntheticFileMode are what HostFileSystem reports
// for every directory and file, since the driver pre-dates real
// ownership/permission mapping.
const (
	syntheticDirMode  = uapi.S_IFDIR | 0777
	syntheticFileMode = uapi.S_IFREG | 0777
)

// MapHostException translates a host OS error into the Linux errno this
// driver reports, mirroring HostFileSystem.cpp's explicit switch over
// Win32 error codes, generalized to Go's stdlib error classification.
func MapHostException(err error) vmerrno.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, os.ErrPermission):
		return vmerrno.E_ACCES
	case errors.Is(err, os.ErrNotExist):
		return vmerrno.E_NOENT
	case errors.Is(err, os.ErrExist):
		return vmerrno.E_EXIST
	case errors.Is(err, os.ErrInvalid):
		return vmerrno.E_INVAL
	case errors.Is(err, syscall.ENOMEM):
		return vmerrno.E_NOMEM
	default:
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return MapHostException(pathErr.Err)
		}
		return vmerrno.E_IO
	}
}

// FileSystem is the shared HostFileSystem instance behind every Mount
// created from it.
type FileSystem struct {
	flags   uint32
	sandbox bool
}

// New constructs a HostFileSystem driver. sandbox defaults to true the
// way the original constructor's local variable did.
func New(flags uint32) *FileSystem {
	return &FileSystem{flags: flags &^ uapi.MountPermountMask, sandbox: true}
}

// Mount implements vfs.FileSystem. data carries the host subtree to
// project via its source= argument, plus sandbox/nosandbox.
func (fsys *FileSystem) Mount(flags uint32, data string) (vfs.Mount, error) {
	opts := mountopts.Parse(flags, data)
	sandbox := fsys.sandbox
	if opts.Arguments.Contains("sandbox") {
		sandbox = true
	}
	if opts.Arguments.Contains("nosandbox") {
		sandbox = false
	}

	source := opts.Arguments.FirstValue("source")
	if source == "" {
		return nil, vmerrno.E_INVAL
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, vmerrno.Wrap(vmerrno.E_INVAL, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, vmerrno.Wrap(MapHostException(err), err)
	}
	if !info.IsDir() {
		return nil, vmerrno.E_NOTDIR
	}

	m := &mount{
		fs:      fsys,
		flags:   opts.Flags,
		sandbox: sandbox,
		base:    abs,
	}
	m.root = &node{mount: m, relPath: ""}
	return m, nil
}

type mount struct {
	fs      *FileSystem
	flags   uint32
	sandbox bool
	base    string
	root    *node
}

func (m *mount) Flags() uint32              { return m.flags }
func (m *mount) Root() vfs.Node             { return m.root }
func (m *mount) FileSystem() vfs.FileSystem { return m.fs }

// hostPath resolves a namespace-relative path to its absolute host
// path, applying the sandbox containment check: when sandboxed, the
// resolved path must remain within the mount's base directory.
func (m *mount) hostPath(rel string) (string, error) {
	clean := filepath.Clean(filepath.Join(m.base, rel))
	if m.sandbox {
		baseWithSep := m.base
		if !strings.HasSuffix(baseWithSep, string(filepath.Separator)) {
			baseWithSep += string(filepath.Separator)
		}
		if clean != m.base && !strings.HasPrefix(clean, baseWithSep) {
			return "", vmerrno.E_NOENT
		}
	}
	return clean, nil
}

// node projects one host path. Its metadata is always re-queried live
// from the host, never cached across calls.
type node struct {
	mu      sync.Mutex
	mount   *mount
	relPath string
	uid     uapi.ID
	gid     uapi.ID
}

func (n *node) hostPath() string {
	p, err := n.mount.hostPath(n.relPath)
	if err != nil {
		// A path that escapes the sandbox maps to "", on which every
		// host call fails with ENOENT.
		return ""
	}
	return p
}

func (n *node) stat() (os.FileInfo, error) {
	return os.Lstat(n.hostPath())
}

// Index derives a stable pseudo-inode from the node's path within the
// mount, since HostFS projects live host metadata rather than owning
// its own inode table.
func (n *node) Index() uint64 {
	h := fnv.New64a()
	h.Write([]byte(n.relPath))
	return h.Sum64()
}

func (n *node) Mode() uapi.Mode {
	info, err := n.stat()
	if err != nil {
		return 0
	}
	if info.IsDir() {
		return syntheticDirMode
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return uapi.S_IFLNK | 0777
	}
	return syntheticFileMode
}

func (n *node) SetMode(uapi.Mode) error { return nil } // synthesized; not persisted

func (n *node) UID() uapi.ID { return n.uid }
func (n *node) SetUID(uid uapi.ID) error {
	n.mu.Lock()
	n.uid = uid
	n.mu.Unlock()
	return nil
}
func (n *node) GID() uapi.ID { return n.gid }
func (n *node) SetGID(gid uapi.ID) error {
	n.mu.Lock()
	n.gid = gid
	n.mu.Unlock()
	return nil
}

func (n *node) AccessTime() time.Time {
	info, err := n.stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
func (n *node) ChangeTime() time.Time { return n.AccessTime() }
func (n *node) ModifyTime() time.Time { return n.AccessTime() }

func (n *node) SetAccessTime(t time.Time) error {
	return os.Chtimes(n.hostPath(), t, n.ModifyTime())
}
func (n *node) SetModifyTime(t time.Time) error {
	return os.Chtimes(n.hostPath(), n.AccessTime(), t)
}

func (n *node) Sync() error     { return nil }
func (n *node) SyncData() error { return nil }

// child resolves name to the node beneath n, normalizing it to NFC first
// so that guest-visible names compare consistently regardless of which
// Unicode normalization form the host file system's own directory
// enumeration happens to store (notably HFS+/APFS's NFD), the same
// concern backend/local's own normalization handling addresses.
func (n *node) child(name string) *node {
	name = norm.NFC.String(name)
	rel := name
	if n.relPath != "" {
		rel = n.relPath + "/" + name
	}
	return &node{mount: n.mount, relPath: rel}
}

func (n *node) CreateDirectory(_ vfs.Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (vfs.Node, error) {
	child := n.child(name)
	if err := os.Mkdir(child.hostPath(), os.FileMode(mode&uapi.S_IALLUGO)); err != nil {
		return nil, vmerrno.Wrap(MapHostException(err), err)
	}
	child.uid, child.gid = uid, gid
	return child, nil
}

func (n *node) CreateFile(_ vfs.Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (vfs.Node, error) {
	child := n.child(name)
	f, err := os.OpenFile(child.hostPath(), os.O_RDWR|os.O_CREATE|os.O_EXCL, os.FileMode(mode&uapi.S_IALLUGO))
	if err != nil {
		return nil, vmerrno.Wrap(MapHostException(err), err)
	}
	f.Close()
	child.uid, child.gid = uid, gid
	return child, nil
}

func (n *node) CreateSymlink(_ vfs.Mount, name, target string, uid, gid uapi.ID) (vfs.Node, error) {
	child := n.child(name)
	if err := os.Symlink(target, child.hostPath()); err != nil {
		return nil, vmerrno.Wrap(MapHostException(err), err)
	}
	child.uid, child.gid = uid, gid
	return child, nil
}

func (n *node) Link(_ vfs.Mount, target vfs.Node, name string) error {
	src, ok := target.(*node)
	if !ok {
		return vmerrno.E_XDEV
	}
	child := n.child(name)
	if err := os.Link(src.hostPath(), child.hostPath()); err != nil {
		return vmerrno.Wrap(MapHostException(err), err)
	}
	return nil
}

func (n *node) Unlink(_ vfs.Mount, name string) error {
	child := n.child(name)
	if err := os.Remove(child.hostPath()); err != nil {
		return vmerrno.Wrap(MapHostException(err), err)
	}
	return nil
}

func (n *node) Lookup(_ vfs.Mount, name string) (vfs.Node, error) {
	if name == "." {
		return n, nil
	}
	if name == ".." {
		if n.relPath == "" {
			return n, nil
		}
		idx := strings.LastIndexByte(n.relPath, '/')
		if idx < 0 {
			return &node{mount: n.mount, relPath: ""}, nil
		}
		return &node{mount: n.mount, relPath: n.relPath[:idx]}, nil
	}
	child := n.child(name)
	if _, err := child.stat(); err != nil {
		return nil, vmerrno.Wrap(MapHostException(err), err)
	}
	return child, nil
}

func (n *node) Enumerate(_ vfs.Mount, visit vfs.DirectoryVisitor) error {
	entries, err := os.ReadDir(n.hostPath())
	if err != nil {
		return vmerrno.Wrap(MapHostException(err), err)
	}
	if err := visit(".", n); err != nil {
		return err
	}
	parent, _ := n.Lookup(nil, "..")
	if err := visit("..", parent); err != nil {
		return err
	}
	for _, e := range entries {
		name := norm.NFC.String(e.Name())
		if err := visit(name, n.child(name)); err != nil {
			return err
		}
	}
	return nil
}

// OpenNode fully constructs a Directory or File node from the resolved
// host attributes and enforces the sandbox containment check before
// returning it, completing the original driver's unfinished stub.
func (n *node) OpenNode(m vfs.Mount, name string, flags uint32, mode uapi.Mode, uid, gid uapi.ID) (vfs.Node, error) {
	if _, err := n.mount.hostPath(filepath.Join(n.relPath, name)); err != nil {
		return nil, err
	}

	child := n.child(name)
	info, statErr := child.stat()
	exists := statErr == nil

	disposition := vfs.TranslateOpenFlags(flags)

	if exists && disposition.Create && disposition.Exclusive {
		return nil, vmerrno.E_EXIST
	}
	if !exists {
		if !disposition.Create {
			return nil, vmerrno.E_NOENT
		}
		created, err := n.CreateFile(m, name, mode, uid, gid)
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	if disposition.DirectoryOnly && !info.IsDir() {
		return nil, vmerrno.E_NOTDIR
	}
	if disposition.Truncate && !info.IsDir() {
		if err := os.Truncate(child.hostPath(), 0); err != nil {
			return nil, vmerrno.Wrap(MapHostException(err), err)
		}
	}
	return child, nil
}

func (n *node) ReadAt(_ vfs.Mount, off int64, whence int, buf []byte) (int, error) {
	f, err := os.Open(n.hostPath())
	if err != nil {
		return 0, vmerrno.Wrap(MapHostException(err), err)
	}
	defer f.Close()
	pos, err := seekFile(f, off, whence)
	if err != nil {
		return 0, err
	}
	nread, err := f.ReadAt(buf, pos)
	if err != nil && !errors.Is(err, io.EOF) {
		return nread, vmerrno.Wrap(MapHostException(err), err)
	}
	return nread, nil
}

func (n *node) WriteAt(_ vfs.Mount, off int64, whence int, buf []byte) (int, error) {
	f, err := os.OpenFile(n.hostPath(), os.O_RDWR, 0)
	if err != nil {
		return 0, vmerrno.Wrap(MapHostException(err), err)
	}
	defer f.Close()
	pos, err := seekFile(f, off, whence)
	if err != nil {
		return 0, err
	}
	written, err := f.WriteAt(buf, pos)
	if err != nil {
		return written, vmerrno.Wrap(MapHostException(err), err)
	}
	return written, nil
}

func seekFile(f *os.File, off int64, whence int) (int64, error) {
	switch whence {
	case uapi.SEEK_SET:
		return off, nil
	case uapi.SEEK_CUR:
		cur, err := f.Seek(0, 1)
		if err != nil {
			return 0, vmerrno.Wrap(MapHostException(err), err)
		}
		return cur + off, nil
	case uapi.SEEK_END:
		info, err := f.Stat()
		if err != nil {
			return 0, vmerrno.Wrap(MapHostException(err), err)
		}
		return info.Size() + off, nil
	default:
		return 0, vmerrno.E_INVAL
	}
}

func (n *node) Seek(_ vfs.Mount, off int64, whence int) (int64, error) {
	f, err := os.Open(n.hostPath())
	if err != nil {
		return 0, vmerrno.Wrap(MapHostException(err), err)
	}
	defer f.Close()
	return seekFile(f, off, whence)
}

func (n *node) Length(_ vfs.Mount) (int64, error) {
	info, err := n.stat()
	if err != nil {
		return 0, vmerrno.Wrap(MapHostException(err), err)
	}
	return info.Size(), nil
}

func (n *node) SetLength(_ vfs.Mount, length int64) error {
	if err := os.Truncate(n.hostPath(), length); err != nil {
		return vmerrno.Wrap(MapHostException(err), err)
	}
	return nil
}

func (n *node) Target() (string, error) {
	target, err := os.Readlink(n.hostPath())
	if err != nil {
		return "", vmerrno.Wrap(MapHostException(err), err)
	}
	return target, nil
}
