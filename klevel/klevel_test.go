package klevel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringRoundTrip(t *testing.T) {
	for _, l := range []Level{Emergency, Alert, Critical, Error, Warning, Notice, Info, Debug} {
		var got Level
		assert.NoError(t, got.Set(l.String()))
		assert.Equal(t, l, got)
	}
}

func TestSetNumeric(t *testing.T) {
	var l Level
	assert.NoError(t, l.Set("3"))
	assert.Equal(t, Error, l)
}

func TestSetDefault(t *testing.T) {
	var l Level
	assert.NoError(t, l.Set("default"))
	assert.Equal(t, Default, l)
	assert.False(t, l.Valid())
}

func TestSetInvalid(t *testing.T) {
	var l Level
	assert.Error(t, l.Set("bogus"))
	assert.Error(t, l.Set("99"))
}

func TestValid(t *testing.T) {
	assert.True(t, Debug.Valid())
	assert.False(t, Default.Valid())
	assert.False(t, Level(8).Valid())
}
