// Package session tracks who is signed in, records user activity and ends
// the session after a period of inactivity.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/cache"
	"github.com/meltforce/fitcourse/internal/models"
)

const (
	DefaultInactivityWindow = 3 * time.Minute
	DefaultCheckInterval    = time.Minute
)

// State is a snapshot of the session. A nil Identity means anonymous.
type State struct {
	Identity     *models.Identity
	LastActivity time.Time
}

// Authenticated reports whether somebody is signed in.
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// Manager owns the session state. It follows the auth provider's identity
// changes and keeps the local cache consistent with them.
type Manager struct {
	provider auth.Provider
	cache    *cache.Store
	medium   cache.Medium
	log      *slog.Logger

	now      func() time.Time
	window   time.Duration
	interval time.Duration

	mu    sync.Mutex
	state State
	subs  map[int]func(State)
	next  int

	cron        *cron.Cron
	unsubscribe func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithInactivityWindow overrides DefaultInactivityWindow.
func WithInactivityWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithCheckInterval overrides DefaultCheckInterval.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// New creates a Manager. The last-activity marker lives in store's medium.
func New(provider auth.Provider, store *cache.Store, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		cache:    store,
		medium:   store.Medium(),
		log:      log,
		now:      time.Now,
		window:   DefaultInactivityWindow,
		interval: DefaultCheckInterval,
		subs:     make(map[int]func(State)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start restores a persisted session, runs one inactivity check against it,
// restarts the activity clock for a session that survives the check and
// schedules the periodic check. It does not block.
func (m *Manager) Start(ctx context.Context) error {
	m.unsubscribe = m.provider.OnChange(m.apply)

	id, err := m.provider.Restore(ctx)
	if err != nil {
		m.log.Warn("session restore failed", "error", err)
		id = m.provider.Current()
	}
	m.apply(id)

	if id == nil {
		m.removeMarker()
	} else if !m.CheckInactivity(ctx) {
		m.RecordActivity()
	}

	m.cron = cron.New()
	m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
		m.CheckInactivity(context.Background())
	}))
	m.cron.Start()
	m.log.Info("session started", "authenticated", id != nil, "inactivity_window", m.window)
	return nil
}

// Stop halts the periodic check and detaches from the provider.
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// SignIn authenticates with the provider and starts the activity clock.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	id, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.apply(id)
	m.RecordActivity()
	return id, nil
}

// SignUp registers a new account and signs it in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	id, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.apply(id)
	m.RecordActivity()
	return id, nil
}

// Logout ends the session. Local state is always cleared; a provider error
// is returned after that.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	if err != nil {
		m.log.Warn("remote sign-out failed, clearing local session", "error", err)
	}
	m.apply(nil)
	return err
}

// ResetPassword asks the provider to send a reset link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	return m.provider.SendPasswordReset(ctx, email)
}

// ChangePassword changes the signed-in user's password.
func (m *Manager) ChangePassword(ctx context.Context, newPassword string) error {
	if m.Current() == nil {
		return auth.ErrNotSignedIn
	}
	return m.provider.ChangePassword(ctx, newPassword)
}

// RecordActivity stamps the last-activity marker. It is a no-op while
// anonymous.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Identity == nil {
		return
	}
	t := m.now()
	if err := m.medium.Set(cache.LastActivityKey, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		m.log.Warn("recording activity failed", "error", err)
	}
	m.state.LastActivity = t
}

// CheckInactivity signs the user out when the last recorded activity is
// older than the inactivity window. It reports whether it did.
func (m *Manager) CheckInactivity(ctx context.Context) bool {
	m.mu.Lock()
	id := m.state.Identity
	recorded := m.state.LastActivity
	m.mu.Unlock()
	if id == nil {
		return false
	}

	// The in-memory stamp covers a marker the medium failed to store.
	last := m.loadActivity()
	if recorded.After(last) {
		last = recorded
	}
	if last.IsZero() {
		return false
	}
	idle := m.now().Sub(last)
	if idle <= m.window {
		return false
	}

	m.log.Info("signing out after inactivity", "uid", id.UID, "idle", idle.Round(time.Second))
	if err := m.Logout(ctx); err != nil {
		m.log.Warn("inactivity sign-out", "error", err)
	}
	return true
}

// Current returns the signed-in identity, or nil.
func (m *Manager) Current() *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Identity == nil {
		return nil
	}
	id := *m.state.Identity
	return &id
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Subscribe registers fn for every state transition.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) snapshot() State {
	st := m.state
	if st.Identity != nil {
		id := *st.Identity
		st.Identity = &id
	}
	return st
}

// apply moves the session to id. Repeating the current identity is a no-op,
// so provider notifications and explicit calls can both arrive.
func (m *Manager) apply(id *models.Identity) {
	m.mu.Lock()
	prev := m.state.Identity
	if (id == nil && prev == nil) || (id != nil && prev != nil && id.UID == prev.UID) {
		m.mu.Unlock()
		return
	}

	if prev != nil {
		m.clearLocked(prev)
	}
	m.state = State{}
	if id != nil {
		cp := *id
		m.state = State{Identity: &cp, LastActivity: m.loadActivity()}
	}

	st := m.snapshot()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if id == nil {
		m.log.Info("session closed", "uid", prev.UID)
	} else {
		m.log.Info("session opened", "uid", id.UID)
	}
	for _, fn := range subs {
		fn(st)
	}
}

// clearLocked drops everything tied to the identity that is leaving.
func (m *Manager) clearLocked(prev *models.Identity) {
	m.removeMarker()
	m.cache.Delete(cache.EnrollmentKey(prev.UID))
}

func (m *Manager) removeMarker() {
	if err := m.medium.Delete(cache.LastActivityKey); err != nil {
		m.log.Warn("clearing activity marker failed", "error", err)
	}
}

// loadActivity reads the marker; a missing or malformed marker is zero.
func (m *Manager) loadActivity() time.Time {
	raw, ok, err := m.medium.Get(cache.LastActivityKey)
	if err != nil {
		m.log.Warn("reading activity marker failed", "error", err)
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
