package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsRoutesUnknownTokens(t *testing.T) {
	table := defaultParamTable()
	args := []string{"log_buf_len=16M", "SOME_ENV=value", "bareflag", "--", "initarg1", "initarg2"}

	result := ParseArgs(args, table)

	v, _ := table.Get("log_buf_len")
	assert.Equal(t, int64(16<<20), v)
	assert.Equal(t, []string{"SOME_ENV=value"}, result.InitEnv)
	assert.Equal(t, []string{"bareflag", "initarg1", "initarg2"}, result.InitArgs)
	assert.Empty(t, result.InvalidArgs)
}

func TestParseArgsRecordsInvalidParams(t *testing.T) {
	table := defaultParamTable()
	args := []string{"loglevel=not-a-number"}

	result := ParseArgs(args, table)
	require.Len(t, result.InvalidArgs, 1)
	assert.Equal(t, "loglevel=not-a-number", result.InvalidArgs[0])
}

func TestParseMode(t *testing.T) {
	mode, name, rest := ParseMode([]string{"-service:myvm", "log_buf_len=16M"})
	assert.Equal(t, ModeService, mode)
	assert.Equal(t, "myvm", name)
	assert.Equal(t, []string{"log_buf_len=16M"}, rest)

	mode, name, _ = ParseMode([]string{"-console"})
	assert.Equal(t, ModeConsole, mode)
	assert.Equal(t, "", name)

	mode, _, rest = ParseMode([]string{"log_buf_len=16M"})
	assert.Equal(t, ModeHeadless, mode)
	assert.Equal(t, []string{"log_buf_len=16M"}, rest)
}
