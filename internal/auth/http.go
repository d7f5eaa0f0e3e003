package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/meltforce/fitcourse/internal/cache"
	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/remote"
)

// TokenKey is the medium key the bearer token is persisted under.
const TokenKey = "authToken"

// TokenResponse is the body of a successful sign-in or sign-up.
type TokenResponse struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"identity"`
}

// ErrorResponse is the body of a failed auth request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HTTPProvider implements Provider against the backend's /api/v1/auth
// endpoints. The token is kept in a cache.Medium so a later process can
// pick the session up with Restore.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	medium     cache.Medium
	log        *slog.Logger

	mu      sync.Mutex
	current *models.Identity

	listeners listeners
}

var (
	_ Provider           = (*HTTPProvider)(nil)
	_ remote.TokenSource = (*HTTPProvider)(nil)
)

func NewHTTPProvider(baseURL string, medium cache.Medium, log *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		medium:     medium,
		log:        log,
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, body any, token string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("authclient: encode %s: %w", path, err)
	}
	return p.do(ctx, http.MethodPost, path, bytes.NewReader(data), token, out)
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body io.Reader, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+"/api/v1/auth/"+path, body)
	if err != nil {
		return fmt.Errorf("authclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authclient: %s: %w: %w", path, ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &e)
		if sentinel := FromCode(e.Code); sentinel != nil {
			return fmt.Errorf("authclient: %s: %w", path, sentinel)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("authclient: %s: %w", path, ErrInvalidToken)
		}
		return fmt.Errorf("authclient: %s returned %d: %w: %s", path, resp.StatusCode, ErrRemoteUnavailable, bytes.TrimSpace(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("authclient: decode %s: %w", path, err)
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	return p.authenticate(ctx, "signin", email, password)
}

func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	return p.authenticate(ctx, "signup", email, password)
}

func (p *HTTPProvider) authenticate(ctx context.Context, path, email, password string) (*models.Identity, error) {
	var tr TokenResponse
	if err := p.post(ctx, path, credentials{Email: email, Password: password}, "", &tr); err != nil {
		return nil, err
	}
	if err := p.medium.Set(TokenKey, tr.Token); err != nil {
		p.log.Warn("persisting auth token failed", "error", err)
	}
	p.set(&tr.Identity)
	return copyIdentity(&tr.Identity), nil
}

// SignOut drops the token. Tokens are stateless on the backend, so there is
// no request to make; the only failure is the medium refusing the delete.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	err := p.medium.Delete(TokenKey)
	p.set(nil)
	if err != nil {
		return fmt.Errorf("removing auth token: %w", err)
	}
	return nil
}

func (p *HTTPProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.post(ctx, "reset", map[string]string{"email": email}, "", nil)
}

func (p *HTTPProvider) ChangePassword(ctx context.Context, newPassword string) error {
	tok := p.Token()
	if tok == "" || p.Current() == nil {
		return ErrNotSignedIn
	}
	return p.post(ctx, "password", map[string]string{"password": newPassword}, tok, nil)
}

// Restore validates a persisted token with GET /me. A rejected token is
// removed; an unreachable backend leaves it in place for the next attempt.
func (p *HTTPProvider) Restore(ctx context.Context) (*models.Identity, error) {
	tok := p.Token()
	if tok == "" {
		return nil, nil
	}
	var id models.Identity
	err := p.do(ctx, http.MethodGet, "me", nil, tok, &id)
	switch {
	case err == nil:
		p.set(&id)
		return copyIdentity(&id), nil
	case IsClientError(err):
		p.log.Info("persisted session rejected", "error", err)
		p.Expire()
		return nil, nil
	default:
		return nil, err
	}
}

func (p *HTTPProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

// Token returns the persisted bearer token, or "".
func (p *HTTPProvider) Token() string {
	tok, ok, err := p.medium.Get(TokenKey)
	if err != nil {
		p.log.Warn("reading auth token failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return tok
}

// Expire signs out locally after the backend rejected the token. It is
// wired to remote.HTTPStore.OnUnauthorized.
func (p *HTTPProvider) Expire() {
	if err := p.medium.Delete(TokenKey); err != nil {
		p.log.Warn("removing auth token failed", "error", err)
	}
	if p.Current() != nil {
		p.set(nil)
	}
}

func (p *HTTPProvider) OnChange(fn func(*models.Identity)) func() {
	return p.listeners.add(fn)
}

func (p *HTTPProvider) set(id *models.Identity) {
	p.mu.Lock()
	p.current = copyIdentity(id)
	p.mu.Unlock()
	p.listeners.notify(copyIdentity(id))
}
