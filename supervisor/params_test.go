package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaledInt(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"128", 128, false},
		{"16K", 16 << 10, false},
		{"16k", 16 << 10, false},
		{"2M", 2 << 20, false},
		{"1G", 1 << 30, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ScaledInt(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParamTableTryParse(t *testing.T) {
	table := defaultParamTable()

	ok, err := table.TryParse("log_buf_len", "16M")
	require.True(t, ok)
	require.NoError(t, err)
	v, found := table.Get("log_buf_len")
	require.True(t, found)
	assert.Equal(t, int64(16<<20), v)

	ok, err = table.TryParse("unknown_key", "value")
	assert.False(t, ok)
	assert.NoError(t, err)

	ok, err = table.TryParse("loglevel", "not-a-number")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "log_buf_len", normalizeKey("LOG-BUF-LEN"))
	assert.Equal(t, "loglevel", normalizeKey("LogLevel"))
}
