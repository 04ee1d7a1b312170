package config

import (
	"strconv"
	"strings"
)

// Options is a free-form option bag (decoded from JSON or YAML) with typed
// accessors. Accessors never fail: a missing or mistyped value yields def.
type Options map[string]any

func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Rune returns the first rune of a string option (e.g. a CSV delimiter).
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key].(string); ok && v != "" {
		for _, r := range v {
			return r
		}
	}
	return def
}

// Strings returns a list option. JSON decodes lists as []any, YAML may give
// []string; both are accepted.
func (o Options) Strings(key string, def []string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return def
}

// StringMap returns a string->string option, e.g. a header rename map.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch v := o[key].(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, x := range v {
			if s, ok := x.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}
