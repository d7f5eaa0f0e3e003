package remote

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store holding the whole tree in memory. It
// backs tests, offline runs and the dev server when no database is set up.
type MemoryStore struct {
	mu   sync.Mutex
	root any
}

// Compile-time check: *MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty tree.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(ctx context.Context, path Path, dst any) (bool, error) {
	if err := path.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	n, ok := getAt(s.root, path.Segments())
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	// Decode under the lock: n aliases the live tree.
	err := decodeNode(n, dst)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Write(ctx context.Context, path Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	n, err := toNode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = setAt(s.root, path.Segments(), n)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path Path) error {
	return s.Write(ctx, path, nil)
}
