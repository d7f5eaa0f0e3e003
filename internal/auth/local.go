package auth

import (
	"context"
	"sync"

	"github.com/meltforce/fitcourse/internal/models"
)

// LocalProvider signs in against an in-process Service. It backs offline
// runs and tests; nothing survives a restart.
type LocalProvider struct {
	svc *Service

	mu      sync.Mutex
	current *models.Identity
	token   string

	listeners listeners
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(svc *Service) *LocalProvider {
	return &LocalProvider{svc: svc}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	id, token, err := p.svc.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.set(id, token)
	return copyIdentity(id), nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	id, token, err := p.svc.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.set(id, token)
	return copyIdentity(id), nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.set(nil, "")
	return nil
}

func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.svc.RequestPasswordReset(ctx, email)
}

func (p *LocalProvider) ChangePassword(ctx context.Context, newPassword string) error {
	id := p.Current()
	if id == nil {
		return ErrNotSignedIn
	}
	return p.svc.ChangePassword(ctx, id.UID, newPassword)
}

func (p *LocalProvider) Restore(ctx context.Context) (*models.Identity, error) {
	return p.Current(), nil
}

func (p *LocalProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

// Token returns the token issued at sign-in.
func (p *LocalProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *LocalProvider) OnChange(fn func(*models.Identity)) func() {
	return p.listeners.add(fn)
}

func (p *LocalProvider) set(id *models.Identity, token string) {
	p.mu.Lock()
	p.current = copyIdentity(id)
	p.token = token
	p.mu.Unlock()
	p.listeners.notify(copyIdentity(id))
}
