package rootfs

import (
	"testing"

	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vfs"
	"github.com/djp952/vm-linux-sub000/vmerrno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountDefaultMode(t *testing.T) {
	fs := New(0)
	m, err := fs.Mount(0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, m.Root().Mode())
}

func TestMountParsesModeUidGid(t *testing.T) {
	fs := New(0)
	m, err := fs.Mount(0, "mode=0700,uid=5,gid=9")
	require.NoError(t, err)
	root := m.Root()
	assert.Equal(t, uapi.S_IFDIR|uapi.Mode(0700), root.Mode())
	assert.Equal(t, uapi.ID(5), root.UID())
	assert.Equal(t, uapi.ID(9), root.GID())
}

func TestMountAlwaysSetsNodevNoexecNosuid(t *testing.T) {
	fs := New(0)
	m, err := fs.Mount(0, "")
	require.NoError(t, err)
	assert.NotZero(t, m.Flags()&uapi.MS_NODEV)
	assert.NotZero(t, m.Flags()&uapi.MS_NOEXEC)
	assert.NotZero(t, m.Flags()&uapi.MS_NOSUID)
}

func TestCreateOperationsAlwaysFail(t *testing.T) {
	fs := New(0)
	m, _ := fs.Mount(0, "")
	dir := m.Root().(vfs.Directory)

	_, err := dir.CreateDirectory(m, "x", 0755, 0, 0)
	assert.ErrorIs(t, err, vmerrno.E_PERM)
	_, err = dir.CreateFile(m, "x", 0644, 0, 0)
	assert.ErrorIs(t, err, vmerrno.E_PERM)
	_, err = dir.CreateSymlink(m, "x", "y", 0, 0)
	assert.ErrorIs(t, err, vmerrno.E_PERM)
	assert.ErrorIs(t, dir.Link(m, dir, "x"), vmerrno.E_PERM)
	assert.ErrorIs(t, dir.Unlink(m, "x"), vmerrno.E_PERM)
}

func TestLookupAlwaysNoent(t *testing.T) {
	fs := New(0)
	m, _ := fs.Mount(0, "")
	dir := m.Root().(vfs.Directory)

	_, err := dir.Lookup(m, "anything")
	assert.ErrorIs(t, err, vmerrno.E_NOENT)

	_, err = dir.Lookup(m, ".")
	assert.ErrorIs(t, err, vmerrno.E_NOENT)

	_, err = dir.Lookup(m, "..")
	assert.ErrorIs(t, err, vmerrno.E_NOENT)
}

func TestEnumerateYieldsDotAndDotDotOnly(t *testing.T) {
	fs := New(0)
	m, _ := fs.Mount(0, "")
	dir := m.Root().(vfs.Directory)

	var names []string
	require.NoError(t, dir.Enumerate(m, func(name string, node vfs.Node) error {
		names = append(names, name)
		return nil
	}))
	assert.Equal(t, []string{".", ".."}, names)
}

func TestRemountAppliesRdonlyOnly(t *testing.T) {
	fs := New(0)
	m, _ := fs.Mount(0, "")
	require.NoError(t, Remount(m, uapi.MS_REMOUNT|uapi.MS_RDONLY))
	assert.NotZero(t, m.Flags()&uapi.MS_RDONLY)

	err := Remount(m, uapi.MS_REMOUNT|uapi.MS_NOEXEC)
	assert.ErrorIs(t, err, vmerrno.E_INVAL)
}
