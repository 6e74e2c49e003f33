package supervisor

import (
	"fmt"
	"strconv"
	"strings"
)

// ScaledInt parses a Linux-style scaled integer: an optional trailing
// K/M/G (case-insensitive) multiplies the numeric prefix by 2^10, 2^20
// or 2^30 respectively, mirroring Parameter<size_t>::TryParse in the
// original host service.
func ScaledInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("supervisor: empty scaled integer")
	}

	mult := int64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("supervisor: invalid scaled integer %q: %w", s, err)
	}

	result := n * mult
	if mult != 1 && result/mult != n {
		return 0, fmt.Errorf("supervisor: scaled integer %q overflows", s)
	}
	return result, nil
}

// ParamKind distinguishes how a recognized parameter's raw string value
// is parsed.
type ParamKind int

const (
	KindScaledInt ParamKind = iota
	KindInt
)

// Param is one entry in the Supervisor's typed parameter table, the Go
// equivalent of the original's Parameter<T> + PARAMETER_MAP macros:
// a name, a Kind used to parse incoming strings, and the current value.
type Param struct {
	Name  string
	Kind  ParamKind
	Value int64
}

// ParamTable is the Supervisor's parsed parameter table, modeled on
// fs/config/configmap's typed option table over string key/value pairs.
type ParamTable struct {
	params map[string]*Param
}

// defaultParamTable seeds the two parameters spec.md §4.8 names, with
// the defaults InstanceService.h declares (2 MiB log buffer, Warning
// level — klevel.Warning's numeric value, kept untyped here to avoid an
// import cycle with klevel; supervisor.go converts it back).
func defaultParamTable() *ParamTable {
	return &ParamTable{params: map[string]*Param{
		"log_buf_len": {Name: "log_buf_len", Kind: KindScaledInt, Value: 2 * 1024 * 1024},
		"loglevel":    {Name: "loglevel", Kind: KindInt, Value: 4}, // klevel.Warning
	}}
}

// TryParse looks up name and, if recognized, parses value into the
// parameter according to its Kind, reporting whether name was known.
// A known parameter that fails to parse reports ok=true, err!=nil, the
// way TryParse's bool return in the original distinguishes "unknown
// key" from "known key, bad value".
func (t *ParamTable) TryParse(name, value string) (ok bool, err error) {
	p, found := t.params[name]
	if !found {
		return false, nil
	}
	switch p.Kind {
	case KindScaledInt:
		n, perr := ScaledInt(value)
		if perr != nil {
			return true, perr
		}
		p.Value = n
	case KindInt:
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return true, perr
		}
		p.Value = n
	}
	return true, nil
}

// Get returns the current integer value of a recognized parameter.
func (t *ParamTable) Get(name string) (int64, bool) {
	p, ok := t.params[name]
	if !ok {
		return 0, false
	}
	return p.Value, true
}

// normalizeKey lowercases name and replaces '-' with '_', the
// InstanceService::OnStart key-normalization rule.
func normalizeKey(name string) string {
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "-", "_")
}
