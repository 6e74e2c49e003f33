package procvm

import (
	"bytes"
	"os"
	"testing"

	"github.com/djp952/vm-linux-sub000/vmerrno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestProcess attaches to the current process, standing in for the
// out-of-process guest the way a unit test for a remote-process manager
// has to target something that's actually alive.
func newTestProcess(t *testing.T) *Process {
	t.Helper()
	p, err := OpenProcess(uint32(os.Getpid()), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Release() })
	return p
}

// TestVMLifecycle exercises spec.md §8 scenario 4: reserve, allocate a
// sub-range, round-trip bytes through it, then release and confirm the
// section is gone.
func TestVMLifecycle(t *testing.T) {
	p := newTestProcess(t)
	m := p.Manager

	const totalLen = 128 * 1024
	const allocLen = 64 * 1024

	base, err := m.Reserve(totalLen)
	require.NoError(t, err)
	assert.Equal(t, 1, m.sectionCount())

	// A reserved-but-not-allocated page must reject read/write/protect.
	buf := make([]byte, 16)
	_, err = m.Read(base, buf)
	assert.ErrorIs(t, err, vmerrno.E_INVALID_ADDRESS)

	require.NoError(t, m.Allocate(base, allocLen, ProtRead|ProtWrite))

	pattern := make([]byte, 256)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	n, err := m.Write(base, pattern)
	require.NoError(t, err)
	assert.Equal(t, len(pattern), n)

	readBack := make([]byte, len(pattern))
	n, err = m.Read(base, readBack)
	require.NoError(t, err)
	assert.Equal(t, len(pattern), n)
	assert.True(t, bytes.Equal(pattern, readBack))

	// The unallocated tail of the reservation still rejects access.
	_, err = m.Read(base+allocLen, buf)
	assert.ErrorIs(t, err, vmerrno.E_INVALID_ADDRESS)

	require.NoError(t, m.Release(base, totalLen))
	assert.Equal(t, 0, m.sectionCount())

	_, err = m.Read(base, buf)
	assert.Error(t, err)
}

// TestReserveAtFillsGaps checks that ReserveAt creates only the missing
// sub-sections, leaving an already-covered prefix untouched.
func TestReserveAtFillsGaps(t *testing.T) {
	p := newTestProcess(t)
	m := p.Manager

	base, err := m.Reserve(64 * 1024)
	require.NoError(t, err)
	require.Equal(t, 1, m.sectionCount())

	// Extend the covered range past what Reserve created; a new section
	// should appear only for the gap.
	_, err = m.ReserveAt(base, 192*1024)
	require.NoError(t, err)
	assert.Equal(t, 2, m.sectionCount())

	// Re-requesting the same already-covered range creates nothing new.
	_, err = m.ReserveAt(base, 192*1024)
	require.NoError(t, err)
	assert.Equal(t, 2, m.sectionCount())
}

// TestUncoveredAddressFails confirms Protect/Lock refuse to operate on
// an address with no backing Section at all.
func TestUncoveredAddressFails(t *testing.T) {
	p := newTestProcess(t)
	m := p.Manager

	err := m.Protect(0xdead0000, 4096, ProtRead)
	assert.ErrorIs(t, err, vmerrno.E_INVALID_ADDRESS)

	err = m.Lock(0xdead0000, 4096)
	assert.ErrorIs(t, err, vmerrno.E_INVALID_ADDRESS)
}

func TestArchitectureString(t *testing.T) {
	assert.Equal(t, "x86", Arch32.String())
	assert.Equal(t, "x86_64", Arch64.String())
	assert.Equal(t, "unknown", ArchUnknown.String())
}
