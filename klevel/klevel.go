// Package klevel defines the eight-level log priority shared by the
// guest-visible system log (klog) and the operator-facing process
// logger. The numbering matches Linux klog levels, and incidentally
// matches rclone's own fs.LogLevel enumeration one-for-one.
package klevel

import "fmt"

// Level is a klog/printk priority. Default is a pseudo-level meaning
// "use whatever the current default level is" and is never stored in a
// log entry.
type Level int8

const (
	Default   Level = -1
	Emergency Level = 0
	Alert     Level = 1
	Critical  Level = 2
	Error     Level = 3
	Warning   Level = 4
	Notice    Level = 5
	Info      Level = 6
	Debug     Level = 7
)

var names = [...]string{
	Emergency: "emerg",
	Alert:     "alert",
	Critical:  "crit",
	Error:     "err",
	Warning:   "warning",
	Notice:    "notice",
	Info:      "info",
	Debug:     "debug",
}

// String implements fmt.Stringer and flag.Value's display half.
func (l Level) String() string {
	if l == Default {
		return "default"
	}
	if l < Emergency || l > Debug {
		return fmt.Sprintf("level(%d)", int8(l))
	}
	return names[l]
}

// Set implements flag.Value, accepting either a level name or its
// numeric value, for use by supervisor's own option parsing.
func (l *Level) Set(s string) error {
	for i, name := range names {
		if name == s {
			*l = Level(i)
			return nil
		}
	}
	if s == "default" {
		*l = Default
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("invalid log level %q", s)
	}
	if n < int(Emergency) || n > int(Debug) {
		return fmt.Errorf("log level %d out of range [%d,%d]", n, Emergency, Debug)
	}
	*l = Level(n)
	return nil
}

// Valid reports whether l is one of the eight concrete levels (excludes
// Default).
func (l Level) Valid() bool { return l >= Emergency && l <= Debug }
