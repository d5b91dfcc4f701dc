// Package fingerprint implements the fingerprint engine: per-source
// raw-fact mapping, in-source deduplication, cross-source merging and
// post-merge normalization.
package fingerprint

import (
	"math"
	"strconv"
	"strings"
)

// coerce normalizes a raw fact value: empty strings become nil, strings
// that parse as bool or number are converted, and whole JSON floats
// collapse to ints.
func coerce(v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<52 {
			return int(t)
		}
		return t
	case nil:
		return nil
	}
	return v
}

// toStrings normalizes list-valued facts to []string, tolerating both
// JSON arrays and whitespace- or comma-separated strings.
func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		fields := strings.FieldsFunc(t, func(r rune) bool {
			return r == ' ' || r == ',' || r == '\n' || r == '\t'
		})
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if f != "" {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
