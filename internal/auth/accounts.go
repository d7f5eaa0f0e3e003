package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Account is a stored login.
type Account struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Accounts persists logins. Lookups return nil, nil for unknown users;
// Create returns ErrEmailInUse on a duplicate email.
type Accounts interface {
	Create(ctx context.Context, a Account) error
	ByEmail(ctx context.Context, email string) (*Account, error)
	ByUID(ctx context.Context, uid string) (*Account, error)
	UpdatePassword(ctx context.Context, uid string, hash []byte) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryAccounts keeps accounts in a map.
type MemoryAccounts struct {
	mu    sync.Mutex
	byUID map[string]Account
}

var _ Accounts = (*MemoryAccounts)(nil)

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byUID: make(map[string]Account)}
}

func (m *MemoryAccounts) Create(ctx context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byUID {
		if existing.Email == a.Email {
			return ErrEmailInUse
		}
	}
	m.byUID[a.UID] = a
	return nil
}

func (m *MemoryAccounts) ByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byUID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MemoryAccounts) ByUID(ctx context.Context, uid string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUID[uid]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryAccounts) UpdatePassword(ctx context.Context, uid string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	a.PasswordHash = hash
	m.byUID[uid] = a
	return nil
}
