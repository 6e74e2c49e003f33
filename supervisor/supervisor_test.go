package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConstructsLogGroupAndRootNamespace(t *testing.T) {
	sup, parsed, err := New([]string{"log_buf_len=256K", "loglevel=6", "--", "init", "--arg"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, sup)
	defer sup.Shutdown()

	assert.NotEmpty(t, sup.Name)
	assert.Equal(t, ModeHeadless, sup.Mode)
	assert.Equal(t, []string{"init", "--arg"}, parsed.InitArgs)

	mount, ok := sup.RootMount()
	require.True(t, ok)
	assert.NotNil(t, mount.Root())
}

func TestNewUsesSuppliedServiceName(t *testing.T) {
	sup, _, err := New([]string{"-service:testsvc"}, Options{})
	require.NoError(t, err)
	defer sup.Shutdown()
	assert.Equal(t, "testsvc", sup.Name)
	assert.Equal(t, ModeService, sup.Mode)
}
