package vmerrno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoError(t *testing.T) {
	assert.Equal(t, "no such file or directory", E_NOENT.Error())
	assert.Contains(t, Errno(999).Error(), "999")
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("open failed")
	err := Wrap(E_ACCES, cause)

	assert.True(t, errors.Is(err, E_ACCES))
	assert.False(t, errors.Is(err, E_NOENT))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(E_INVAL, nil)
	assert.Equal(t, E_INVAL, err)
}

func TestAs(t *testing.T) {
	bare, ok := As(E_IO)
	assert.True(t, ok)
	assert.Equal(t, E_IO, bare)

	wrappedErr := Wrap(E_ROFS, fmt.Errorf("readonly"))
	got, ok := As(wrappedErr)
	assert.True(t, ok)
	assert.Equal(t, E_ROFS, got)

	_, ok = As(fmt.Errorf("unrelated"))
	assert.False(t, ok)
}
