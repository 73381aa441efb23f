package config

import (
	"fmt"
	"strconv"
)

// Backend persists the non-secret keys set with `lumina config set`. Values
// are kept as text and parsed against the key table when configuration loads.
type Backend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
	Unset(key string) error
	// Location names where the values live, shown by `lumina config show`.
	Location() string
}

// parseValue converts raw text into the Go type the key expects.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s wants an integer, got %q", s.key, raw)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s wants true or false, got %q", s.key, raw)
		}
		return b, nil
	case kFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s wants a number, got %q", s.key, raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}
