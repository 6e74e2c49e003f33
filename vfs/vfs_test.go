package vfs

import (
	"testing"
	"time"

	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vmerrno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memNode is a minimal in-memory Node/Directory/File/SymbolicLink used
// only to exercise the Resolver and Handle logic in isolation from any
// real driver.
type memNode struct {
	index   uint64
	mode    uapi.Mode
	uid     uapi.ID
	gid     uapi.ID
	atime   time.Time
	ctime   time.Time
	mtime   time.Time
	data    []byte
	target  string
	parent  *memNode
	entries map[string]*memNode
}

func newDir(index uint64, parent *memNode) *memNode {
	return &memNode{index: index, mode: uapi.Mode(uapi.S_IFDIR | 0755), parent: parent, entries: map[string]*memNode{}}
}

func (n *memNode) Index() uint64             { return n.index }
func (n *memNode) Mode() uapi.Mode           { return n.mode }
func (n *memNode) SetMode(m uapi.Mode) error { n.mode = m; return nil }
func (n *memNode) UID() uapi.ID              { return n.uid }
func (n *memNode) SetUID(u uapi.ID) error    { n.uid = u; return nil }
func (n *memNode) GID() uapi.ID              { return n.gid }
func (n *memNode) SetGID(g uapi.ID) error    { n.gid = g; return nil }
func (n *memNode) AccessTime() time.Time     { return n.atime }
func (n *memNode) ChangeTime() time.Time     { return n.ctime }
func (n *memNode) ModifyTime() time.Time     { return n.mtime }
func (n *memNode) SetAccessTime(t time.Time) error { n.atime = t; return nil }
func (n *memNode) SetModifyTime(t time.Time) error { n.mtime = t; return nil }
func (n *memNode) Sync() error                     { return nil }
func (n *memNode) SyncData() error                 { return nil }

func (n *memNode) CreateDirectory(mount Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (Node, error) {
	child := newDir(0, n)
	n.entries[name] = child
	return child, nil
}
func (n *memNode) CreateFile(mount Mount, name string, mode uapi.Mode, uid, gid uapi.ID) (Node, error) {
	child := &memNode{mode: uapi.Mode(uapi.S_IFREG | 0644), parent: n}
	n.entries[name] = child
	return child, nil
}
func (n *memNode) CreateSymlink(mount Mount, name, target string, uid, gid uapi.ID) (Node, error) {
	child := &memNode{mode: uapi.Mode(uapi.S_IFLNK | 0777), target: target, parent: n}
	n.entries[name] = child
	return child, nil
}
func (n *memNode) Link(mount Mount, node Node, name string) error { return vmerrno.E_PERM }
func (n *memNode) Unlink(mount Mount, name string) error {
	delete(n.entries, name)
	return nil
}
func (n *memNode) Lookup(mount Mount, name string) (Node, error) {
	if name == ".." {
		if n.parent == nil {
			return n, nil
		}
		return n.parent, nil
	}
	c, ok := n.entries[name]
	if !ok {
		return nil, vmerrno.E_NOENT
	}
	return c, nil
}
func (n *memNode) Enumerate(mount Mount, visit DirectoryVisitor) error {
	for name, child := range n.entries {
		if err := visit(name, child); err != nil {
			return err
		}
	}
	return nil
}
func (n *memNode) OpenNode(mount Mount, name string, flags uint32, mode uapi.Mode, uid, gid uapi.ID) (Node, error) {
	return n.Lookup(mount, name)
}

func (n *memNode) ReadAt(mount Mount, off int64, whence int, buf []byte) (int, error) {
	if off < 0 || off > int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[off:]), nil
}
func (n *memNode) WriteAt(mount Mount, off int64, whence int, buf []byte) (int, error) {
	if whence == uapi.SEEK_END {
		off = int64(len(n.data))
	}
	end := off + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:], buf)
	return len(buf), nil
}
func (n *memNode) Seek(mount Mount, off int64, whence int) (int64, error) { return off, nil }
func (n *memNode) Length(mount Mount) (int64, error)                     { return int64(len(n.data)), nil }
func (n *memNode) SetLength(mount Mount, length int64) error {
	n.data = n.data[:length]
	return nil
}

func (n *memNode) Target() (string, error) { return n.target, nil }

type memMount struct {
	flags uint32
	root  Node
}

func (m *memMount) Flags() uint32      { return m.flags }
func (m *memMount) Root() Node         { return m.root }
func (m *memMount) FileSystem() FileSystem { return nil }

func TestResolveDotAndDotDot(t *testing.T) {
	root := newDir(1, nil)
	sub := newDir(2, root)
	root.entries["sub"] = sub
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	lk, err := r.Resolve("sub/../sub/.", ResolveOptions{})
	require.NoError(t, err)
	assert.Same(t, sub, lk.Node)
}

func TestResolveNeverEscapesRoot(t *testing.T) {
	root := newDir(1, nil)
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	lk, err := r.Resolve("../../..", ResolveOptions{})
	require.NoError(t, err)
	assert.Same(t, root, lk.Node)
}

func TestResolveFollowsSymlink(t *testing.T) {
	root := newDir(1, nil)
	target := newDir(2, root)
	root.entries["real"] = target
	root.entries["link"] = &memNode{mode: uapi.Mode(uapi.S_IFLNK | 0777), target: "real", parent: root}
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	lk, err := r.Resolve("link", ResolveOptions{})
	require.NoError(t, err)
	assert.Same(t, target, lk.Node)
}

func TestResolveNoFollowTerminalSymlink(t *testing.T) {
	root := newDir(1, nil)
	link := &memNode{mode: uapi.Mode(uapi.S_IFLNK | 0777), target: "real", parent: root}
	root.entries["link"] = link
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	lk, err := r.Resolve("link", ResolveOptions{NoFollow: true})
	require.NoError(t, err)
	assert.Same(t, link, lk.Node)
}

func TestResolveSymlinkLoopIsBounded(t *testing.T) {
	root := newDir(1, nil)
	root.entries["a"] = &memNode{mode: uapi.Mode(uapi.S_IFLNK | 0777), target: "b", parent: root}
	root.entries["b"] = &memNode{mode: uapi.Mode(uapi.S_IFLNK | 0777), target: "a", parent: root}
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	_, err := r.Resolve("a", ResolveOptions{})
	assert.ErrorIs(t, err, vmerrno.E_LOOP)
}

func TestResolveMissingComponent(t *testing.T) {
	root := newDir(1, nil)
	mount := &memMount{root: root}
	r := &Resolver{RootMount: mount, RootNode: root}

	_, err := r.Resolve("nope", ResolveOptions{})
	assert.ErrorIs(t, err, vmerrno.E_NOENT)
}

func TestHandleSeekEndUsesLength(t *testing.T) {
	root := newDir(1, nil)
	file := &memNode{mode: uapi.Mode(uapi.S_IFREG | 0644), data: []byte("0123456789")}
	mount := &memMount{root: root}
	h := NewHandle(mount, file, uapi.O_RDWR)

	pos, err := h.Seek(-3, uapi.SEEK_END)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)
}

func TestHandleReadWriteRespectAccessMode(t *testing.T) {
	root := newDir(1, nil)
	file := &memNode{mode: uapi.Mode(uapi.S_IFREG | 0644), data: []byte("hello")}
	mount := &memMount{root: root}

	ro := NewHandle(mount, file, uapi.O_RDONLY)
	_, err := ro.Write([]byte("x"))
	assert.ErrorIs(t, err, vmerrno.E_ACCES)

	buf := make([]byte, 5)
	n, err := ro.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestHandleOPathDeniesIO(t *testing.T) {
	root := newDir(1, nil)
	file := &memNode{mode: uapi.Mode(uapi.S_IFREG | 0644)}
	mount := &memMount{root: root}
	h := NewHandle(mount, file, uapi.O_RDWR|uapi.O_PATH)

	_, err := h.Read(make([]byte, 1))
	assert.ErrorIs(t, err, vmerrno.E_ACCES)
}

func TestHandleDuplicateClearsCloexec(t *testing.T) {
	root := newDir(1, nil)
	file := &memNode{mode: uapi.Mode(uapi.S_IFREG | 0644)}
	mount := &memMount{root: root}
	h := NewHandle(mount, file, uapi.O_RDONLY|uapi.O_CLOEXEC)

	dup := h.Duplicate()
	assert.Zero(t, dup.Flags&uapi.O_CLOEXEC)
	assert.NotZero(t, h.Flags&uapi.O_CLOEXEC)
}

func TestShouldUpdateAccessTime(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	assert.False(t, ShouldUpdateAccessTime(uapi.MS_NOATIME, 0, old, old, old, now))
	assert.False(t, ShouldUpdateAccessTime(0, uapi.O_NOATIME, old, old, old, now))
	assert.True(t, ShouldUpdateAccessTime(uapi.MS_STRICTATIME, 0, now, now, now, now))
	assert.True(t, ShouldUpdateAccessTime(0, 0, old, now, now, now))
	assert.False(t, ShouldUpdateAccessTime(0, 0, now, old, old, now))
}

func TestCheckPermission(t *testing.T) {
	mode := uapi.Mode(0640)
	assert.NoError(t, CheckPermission(mode, 1, 1, 1, 1, 0x4, 0))
	assert.Error(t, CheckPermission(mode, 1, 1, 2, 2, 0x4, 0))
	assert.NoError(t, CheckPermission(mode, 1, 1, 2, 2, 0x4, 1<<uapi.CAP_DAC_OVERRIDE))
}
