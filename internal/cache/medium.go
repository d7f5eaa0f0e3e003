package cache

import (
	"sort"
	"strings"
	"sync"
)

// Medium is a synchronous string key-value store that survives process
// restarts. Store and the session's last-activity marker live on top of it.
type Medium interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// MemoryMedium is a process-local Medium. It does not persist anything and
// is meant for tests and one-shot offline runs.
type MemoryMedium struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryMedium creates an empty MemoryMedium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string)}
}

func (m *MemoryMedium) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryMedium) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryMedium) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
