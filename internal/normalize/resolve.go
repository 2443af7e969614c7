package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve returns the first candidate field present in record with a truthy
// value. Candidate order is part of the contract: lists are ordered most
// specific schema first, and a collision between legacy and modern fields is
// decided by that order alone. Candidates containing a dot are treated as
// paths into nested maps and lists ("amounts.totalHT", "related.0.name").
func Resolve(record map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, candidate := range candidates {
		var (
			v  interface{}
			ok bool
		)
		if strings.ContainsRune(candidate, '.') {
			v, ok = lookupPath(record, candidate)
		} else {
			v, ok = record[candidate]
		}
		if ok && truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// ResolveString resolves like Resolve and renders the value as a string.
// Missing or falsy candidates yield "".
func ResolveString(record map[string]interface{}, candidates ...string) string {
	v, ok := Resolve(record, candidates...)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Stringify renders a scalar payload value as a string, trimming float
// artifacts from JSON-decoded integers ("77" not "77.000000").
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// lookupPath walks a dotted path through nested maps and slices. Numeric
// segments index into slices. Any type mismatch or missing segment fails the
// lookup instead of panicking.
func lookupPath(record map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = record
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}
