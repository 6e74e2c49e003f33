// Package mountopts parses Linux-style mount option strings into a
// standard flags bitmask plus a multimap of non-standard key/value
// arguments, following the token scanner and flag table of the host
// service's MountOptions.cpp.
package mountopts

import (
	"strings"

	"github.com/djp952/vm-linux-sub000/uapi"
)

// Arguments is a multimap of non-standard mount option tokens, preserving
// insertion order per key the way MountArguments' equal_range walk did.
type Arguments struct {
	keys   []string
	values map[string][]string
}

func newArguments() *Arguments {
	return &Arguments{values: make(map[string][]string)}
}

func (a *Arguments) add(key, value string) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = append(a.values[key], value)
}

// Contains reports whether key was seen at least once.
func (a *Arguments) Contains(key string) bool {
	_, ok := a.values[key]
	return ok
}

// FirstValue returns the first value recorded for key, or "" if absent.
func (a *Arguments) FirstValue(key string) string {
	v := a.values[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// AllValues returns every value recorded for key, in encounter order.
func (a *Arguments) AllValues(key string) []string {
	return append([]string(nil), a.values[key]...)
}

// Options is the parsed result: a standard flags bitmask plus the
// leftover non-standard arguments.
type Options struct {
	Flags     uint32
	Arguments *Arguments
}

// Parse scans a comma- or whitespace-separated mount option string,
// starting from an initial flags value. A double quote toggles
// in-quotes state wherever it appears within a token — not only at the
// token's start — so a quoted key (`"some key"=yes`) or a quoted value
// following an unquoted key (`key="a value, with comma"`) both read as
// a single token with any embedded commas or whitespace preserved; the
// quote characters themselves are stripped from the result.
func Parse(flags uint32, data string) *Options {
	opts := &Options{Flags: flags, Arguments: newArguments()}

	i := 0
	for i < len(data) {
		for i < len(data) && (isSpace(data[i]) || data[i] == ',') {
			i++
		}
		if i >= len(data) {
			break
		}

		var token strings.Builder
		inQuotes := false
		for i < len(data) {
			c := data[i]
			if c == '"' {
				inQuotes = !inQuotes
				i++
				continue
			}
			if !inQuotes && (isSpace(c) || c == ',') {
				break
			}
			token.WriteByte(c)
			i++
		}
		parseToken(strings.TrimSpace(token.String()), opts)
	}
	return opts
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func parseToken(token string, opts *Options) {
	if token == "" {
		return
	}

	switch token {
	case "ro":
		opts.Flags |= uapi.MS_RDONLY
	case "rw":
		opts.Flags &^= uapi.MS_RDONLY
	case "suid":
		opts.Flags &^= uapi.MS_NOSUID
	case "nosuid":
		opts.Flags |= uapi.MS_NOSUID
	case "dev":
		opts.Flags &^= uapi.MS_NODEV
	case "nodev":
		opts.Flags |= uapi.MS_NODEV
	case "exec":
		opts.Flags &^= uapi.MS_NOEXEC
	case "noexec":
		opts.Flags |= uapi.MS_NOEXEC
	case "async":
		opts.Flags &^= uapi.MS_SYNCHRONOUS
	case "sync":
		opts.Flags |= uapi.MS_SYNCHRONOUS
	case "remount":
		opts.Flags |= uapi.MS_REMOUNT
	case "mand":
		opts.Flags |= uapi.MS_MANDLOCK
	case "nomand":
		opts.Flags &^= uapi.MS_MANDLOCK
	case "dirsync":
		opts.Flags |= uapi.MS_DIRSYNC
	case "atime":
		opts.Flags &^= uapi.MS_NOATIME
	case "noatime":
		opts.Flags |= uapi.MS_NOATIME
	case "diratime":
		opts.Flags &^= uapi.MS_NODIRATIME
	case "nodiratime":
		opts.Flags |= uapi.MS_NODIRATIME
	case "relatime":
		opts.Flags |= uapi.MS_RELATIME
	case "norelatime":
		opts.Flags &^= uapi.MS_RELATIME
	case "silent":
		opts.Flags |= uapi.MS_SILENT
	case "loud":
		opts.Flags &^= uapi.MS_SILENT
	case "strictatime":
		opts.Flags |= uapi.MS_STRICTATIME
	case "lazytime":
		opts.Flags |= uapi.MS_LAZYTIME
	case "nolazytime":
		opts.Flags &^= uapi.MS_LAZYTIME
	case "iversion":
		opts.Flags |= uapi.MS_I_VERSION
	case "noiversion":
		opts.Flags &^= uapi.MS_I_VERSION
	default:
		if eq := strings.IndexByte(token, '='); eq >= 0 {
			opts.Arguments.add(strings.TrimSpace(token[:eq]), strings.TrimSpace(token[eq+1:]))
		} else {
			opts.Arguments.add(token, "")
		}
	}
}
