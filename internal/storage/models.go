package storage

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned when a value is larger than the store accepts.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// DefaultQuota mirrors the per-origin budget of browser local storage.
const DefaultQuota = 5 << 20 // 5MB

// KV is a string-keyed, string-valued store. A missing key is reported
// through ok=false, never as an error.
type KV interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Change reports that a key was written or removed outside the caller.
type Change struct {
	Key     string
	Removed bool
}

func checkQuota(key, value string, quota int) error {
	if quota > 0 && len(key)+len(value) > quota {
		return fmt.Errorf("setting %q (%d bytes): %w", key, len(value), ErrQuotaExceeded)
	}
	return nil
}
