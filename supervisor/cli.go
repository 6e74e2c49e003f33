package supervisor

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ParsedArgs is the result of scanning the supervisor's command line:
// recognized parameters are applied directly to a ParamTable, while
// unknown key=value tokens become guest environment variables and
// unknown bare tokens become guest argv, following
// InstanceService::OnStart's token scanner exactly (argv[0] is assumed
// already stripped by the caller, matching Go's os.Args[1:] convention
// rather than C's argv[0]-is-the-program-name one).
type ParsedArgs struct {
	InitArgs    []string
	InitEnv     []string
	InvalidArgs []string
}

// ParseArgs splits args on "=" (key lowercased, "-" -> "_"), applies
// recognized keys to table, and routes everything else to init argv or
// init environment. A literal "--" token ends parameter scanning; every
// token after it flows straight into InitArgs.
func ParseArgs(args []string, table *ParamTable) ParsedArgs {
	var result ParsedArgs

	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}

		key, value, hasValue := splitKeyValue(arg)
		key = normalizeKey(key)

		if ok, err := table.TryParse(key, value); ok {
			if err != nil {
				result.InvalidArgs = append(result.InvalidArgs, arg)
			}
			continue
		}

		if hasValue {
			result.InitEnv = append(result.InitEnv, arg)
		} else {
			result.InitArgs = append(result.InitArgs, arg)
		}
	}

	result.InitArgs = append(result.InitArgs, args[i:]...)
	return result
}

func splitKeyValue(arg string) (key, value string, hasValue bool) {
	idx := strings.IndexByte(arg, '=')
	if idx < 0 {
		return arg, "", false
	}
	return arg[:idx], arg[idx+1:], true
}

// LogInvalidArgs writes one Warning-level log entry per token that
// looked like a recognized parameter but failed to parse, the same
// deferred "dump once the log exists" behavior InstanceService::OnStart
// uses since the system log doesn't exist yet while argv is still being
// scanned.
func LogInvalidArgs(log *logrus.Logger, invalid []string) {
	for _, arg := range invalid {
		log.WithField("component", "supervisor").Warnf("failed to parse parameter: %s", arg)
	}
}

// Mode is the supervisor's operating mode, set by one of three mutually
// exclusive command-line switches.
type Mode int

const (
	ModeHeadless Mode = iota
	ModeService
	ModeConsole
)

// ParseMode inspects args for -service[:name] / -console[:name] and
// strips the matched token, returning the mode, the name (empty unless
// supplied), and the remaining arguments.
func ParseMode(args []string) (mode Mode, name string, rest []string) {
	rest = make([]string, 0, len(args))
	for _, a := range args {
		switch {
		case a == "-service" || strings.HasPrefix(a, "-service:"):
			mode = ModeService
			name = modeName(a, "-service:")
			continue
		case a == "-console" || strings.HasPrefix(a, "-console:"):
			mode = ModeConsole
			name = modeName(a, "-console:")
			continue
		}
		rest = append(rest, a)
	}
	return mode, name, rest
}

func modeName(arg, prefix string) string {
	if strings.HasPrefix(arg, prefix) {
		return arg[len(prefix):]
	}
	return ""
}
