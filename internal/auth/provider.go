// Package auth signs users in and out and reports identity changes. Two
// providers exist: LocalProvider, backed by an in-process Service, and
// HTTPProvider, which talks to the backend's /api/v1/auth endpoints.
package auth

import (
	"context"
	"sync"

	"github.com/meltforce/fitcourse/internal/models"
)

// Provider is the authentication contract the session layer depends on.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, newPassword string) error

	// Restore reloads a persisted session, if any, and returns the
	// resulting identity (nil when nobody is signed in).
	Restore(ctx context.Context) (*models.Identity, error)

	Current() *models.Identity

	// OnChange registers fn to be called after every identity change,
	// including sign-outs the provider detects on its own.
	OnChange(fn func(*models.Identity)) (unsubscribe func())
}

// listeners fans identity changes out to subscribers. Callbacks run outside
// the lock, so they may call back into the provider.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(*models.Identity)
}

func (l *listeners) add(fn func(*models.Identity)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(*models.Identity))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) notify(id *models.Identity) {
	l.mu.Lock()
	fns := make([]func(*models.Identity), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func copyIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
