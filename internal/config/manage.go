package config

import "fmt"

// KeyInfo is one row of `lumina config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every non-secret key with its effective value in cfg.
func ShowAll(cfg Config) []KeyInfo {
	var rows []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		rows = append(rows, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
	}
	return rows
}

// Location names where `lumina config set` stores values on this platform.
func Location() string {
	return newPlatformBackend().Location()
}

// SetKey validates value against the key's type and stores it.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), key, value)
}

// UnsetKey removes a stored value so the default applies again.
func UnsetKey(key string) error {
	return unsetKeyWith(newPlatformBackend(), key)
}

// lookupSettable finds a key that may be stored in the plain backend.
func lookupSettable(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("%s is a secret; set %s or use the platform secret store", key, s.env)
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key %q", key)
}

func setKeyWith(b Backend, key, value string) error {
	s, err := lookupSettable(key)
	if err != nil {
		return err
	}
	if _, err := parseValue(s, value); err != nil {
		return err
	}
	return b.Set(key, value)
}

func unsetKeyWith(b Backend, key string) error {
	if _, err := lookupSettable(key); err != nil {
		return err
	}
	return b.Unset(key)
}

// ValidKeys names the keys `lumina config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
