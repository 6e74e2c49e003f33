package mountopts

import (
	"testing"

	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	o := Parse(0, "ro,nosuid,noexec")
	assert.NotZero(t, o.Flags&uapi.MS_RDONLY)
	assert.NotZero(t, o.Flags&uapi.MS_NOSUID)
	assert.NotZero(t, o.Flags&uapi.MS_NOEXEC)
}

func TestParseClearsFlags(t *testing.T) {
	o := Parse(uapi.MS_RDONLY|uapi.MS_NOSUID, "rw,suid")
	assert.Zero(t, o.Flags&uapi.MS_RDONLY)
	assert.Zero(t, o.Flags&uapi.MS_NOSUID)
}

func TestParseQuotedToken(t *testing.T) {
	o := Parse(0, `key="a value, with comma" ,ro`)
	assert.Equal(t, "a value, with comma", o.Arguments.FirstValue("key"))
	assert.NotZero(t, o.Flags&uapi.MS_RDONLY)
}

func TestParseBareAndKeyValueArguments(t *testing.T) {
	o := Parse(0, "uid=1000,gid=1000,sandbox")
	assert.True(t, o.Arguments.Contains("uid"))
	assert.Equal(t, "1000", o.Arguments.FirstValue("uid"))
	assert.Equal(t, "1000", o.Arguments.FirstValue("gid"))
	assert.True(t, o.Arguments.Contains("sandbox"))
	assert.Equal(t, "", o.Arguments.FirstValue("sandbox"))
}

func TestParseRepeatedKeyAllValues(t *testing.T) {
	o := Parse(0, "x=1,x=2,x=3")
	assert.Equal(t, []string{"1", "2", "3"}, o.Arguments.AllValues("x"))
	assert.Equal(t, "1", o.Arguments.FirstValue("x"))
}

func TestParseWhitespaceTrimmed(t *testing.T) {
	o := Parse(0, `  "key = value"  , ro `)
	assert.Equal(t, "value", o.Arguments.FirstValue("key"))
	assert.NotZero(t, o.Flags&uapi.MS_RDONLY)
}

func TestParseEmptyString(t *testing.T) {
	o := Parse(uapi.MS_RDONLY, "")
	assert.Equal(t, uint32(uapi.MS_RDONLY), o.Flags)
	assert.False(t, o.Arguments.Contains("anything"))
}
