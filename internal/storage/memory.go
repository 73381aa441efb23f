package storage

import "sync"

// Memory is an in-process KV used when persistence is not wanted.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
}

// NewMemory returns an empty Memory store with the default quota.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string), quota: DefaultQuota}
}

// SetQuota changes the per-value size limit. Zero disables the check.
func (m *Memory) SetQuota(bytes int) {
	m.mu.Lock()
	m.quota = bytes
	m.mu.Unlock()
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkQuota(key, value, m.quota); err != nil {
		return err
	}
	m.items[key] = value
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
