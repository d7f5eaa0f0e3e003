package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/cache"
	"github.com/meltforce/fitcourse/internal/models"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeProvider is a scripted auth.Provider.
type fakeProvider struct {
	mu         sync.Mutex
	current    *models.Identity
	restored   *models.Identity
	signOutErr error
	fns        []func(*models.Identity)
}

func (p *fakeProvider) set(id *models.Identity) {
	p.mu.Lock()
	p.current = id
	fns := append([]func(*models.Identity){}, p.fns...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	if password != "secret1" {
		return nil, auth.ErrInvalidCredentials
	}
	id := &models.Identity{UID: "uid-" + email, Email: email}
	p.set(id)
	return id, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	return p.SignIn(ctx, email, password)
}

// SignOut fails without touching the provider state when signOutErr is set,
// like a backend that could not be reached.
func (p *fakeProvider) SignOut(ctx context.Context) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.set(nil)
	return nil
}

func (p *fakeProvider) SendPasswordReset(ctx context.Context, email string) error { return nil }

func (p *fakeProvider) ChangePassword(ctx context.Context, newPassword string) error { return nil }

func (p *fakeProvider) Restore(ctx context.Context) (*models.Identity, error) {
	if p.restored != nil {
		p.set(p.restored)
	}
	return p.restored, nil
}

func (p *fakeProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakeProvider) OnChange(fn func(*models.Identity)) func() {
	p.mu.Lock()
	p.fns = append(p.fns, fn)
	p.mu.Unlock()
	return func() {}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	provider *fakeProvider
	medium   *cache.MemoryMedium
	store    *cache.Store
	clock    *clock
	mgr      *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{},
		medium:   cache.NewMemoryMedium(),
		clock:    &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.store = cache.New(f.medium, discardLog, cache.WithClock(f.clock.Now))
	f.mgr = New(f.provider, f.store, discardLog, WithClock(f.clock.Now), WithCheckInterval(time.Hour))
	t.Cleanup(f.mgr.Stop)
	return f
}

func (f *fixture) signIn(t *testing.T) *models.Identity {
	t.Helper()
	id, err := f.mgr.SignIn(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// TestInactivityLogout verifies 4 idle minutes end the session while 2 do
// not.
func TestInactivityLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t)

	f.clock.Advance(2 * time.Minute)
	if f.mgr.CheckInactivity(ctx) {
		t.Fatal("logged out after 2 minutes")
	}
	if f.mgr.Current() == nil {
		t.Fatal("session lost after 2 minutes")
	}

	f.clock.Advance(2 * time.Minute)
	if !f.mgr.CheckInactivity(ctx) {
		t.Fatal("still signed in after 4 minutes")
	}
	if f.mgr.Current() != nil || f.provider.Current() != nil {
		t.Error("identity survived inactivity logout")
	}
	if _, ok, _ := f.medium.Get(cache.LastActivityKey); ok {
		t.Error("activity marker not removed")
	}
}

// TestInactivityWindowIsStrict verifies exactly the window is not enough.
func TestInactivityWindowIsStrict(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.clock.Advance(DefaultInactivityWindow)
	if f.mgr.CheckInactivity(context.Background()) {
		t.Error("logged out at exactly the window")
	}
}

// TestRecordActivityExtends verifies activity resets the idle clock.
func TestRecordActivityExtends(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	for range 5 {
		f.clock.Advance(2 * time.Minute)
		f.mgr.RecordActivity()
	}
	if f.mgr.CheckInactivity(context.Background()) {
		t.Error("active user was logged out")
	}
	raw, ok, _ := f.medium.Get(cache.LastActivityKey)
	if !ok || raw != strconv.FormatInt(f.clock.Now().UnixMilli(), 10) {
		t.Errorf("marker = %q, want epoch millis of now", raw)
	}
}

func TestRecordActivityAnonymous(t *testing.T) {
	f := newFixture(t)
	f.mgr.RecordActivity()
	if _, ok, _ := f.medium.Get(cache.LastActivityKey); ok {
		t.Error("marker written while anonymous")
	}
	if f.mgr.CheckInactivity(context.Background()) {
		t.Error("anonymous check reported a logout")
	}
}

// TestLogoutRemoteFailure verifies local state is cleared even when the
// provider fails, and the error is still reported.
func TestLogoutRemoteFailure(t *testing.T) {
	f := newFixture(t)
	id := f.signIn(t)
	f.store.Set(cache.EnrollmentKey(id.UID), []string{"c1"})

	f.provider.signOutErr = auth.ErrRemoteUnavailable
	err := f.mgr.Logout(context.Background())
	if !errors.Is(err, auth.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want ErrRemoteUnavailable", err)
	}
	if f.mgr.Current() != nil {
		t.Error("session still open")
	}
	var v []string
	if f.store.Get(cache.EnrollmentKey(id.UID), &v) {
		t.Error("enrollment cache not evicted")
	}
}

// TestSubscribeTransitions verifies subscribers see sign-in and sign-out and
// duplicate notifications are collapsed.
func TestSubscribeTransitions(t *testing.T) {
	f := newFixture(t)
	var states []State
	unsubscribe := f.mgr.Subscribe(func(s State) { states = append(states, s) })

	f.signIn(t)
	if err := f.mgr.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	f.signIn(t)

	if len(states) != 2 || !states[0].Authenticated() || states[1].Authenticated() {
		t.Errorf("states = %+v", states)
	}
}

// TestExternalSignOut verifies a sign-out reported by the provider closes
// the session.
func TestExternalSignOut(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.signIn(t)

	f.provider.set(nil)
	if f.mgr.Current() != nil {
		t.Error("session survived provider sign-out")
	}
}

// TestStartExpiredMarker verifies a restored session whose marker is older
// than the window is ended at startup.
func TestStartExpiredMarker(t *testing.T) {
	f := newFixture(t)
	f.provider.restored = &models.Identity{UID: "u1"}
	stale := f.clock.Now().Add(-10 * time.Minute).UnixMilli()
	f.medium.Set(cache.LastActivityKey, strconv.FormatInt(stale, 10))

	if err := f.mgr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.mgr.Current() != nil {
		t.Error("expired session restored")
	}
}

// TestStartFreshMarker verifies a recent marker keeps the restored session
// and restarts its activity clock.
func TestStartFreshMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.restored = &models.Identity{UID: "u1"}
	recent := f.clock.Now().Add(-2 * time.Minute).UnixMilli()
	f.medium.Set(cache.LastActivityKey, strconv.FormatInt(recent, 10))

	if err := f.mgr.Start(ctx); err != nil {
		t.Fatal(err)
	}
	now := f.clock.Now().UnixMilli()
	st := f.mgr.State()
	if !st.Authenticated() || st.LastActivity.UnixMilli() != now {
		t.Errorf("state = %+v, want last activity %d", st, now)
	}
	if raw, _, _ := f.medium.Get(cache.LastActivityKey); raw != strconv.FormatInt(now, 10) {
		t.Errorf("marker = %q, want %d", raw, now)
	}

	f.clock.Advance(90 * time.Second)
	if f.mgr.CheckInactivity(ctx) {
		t.Error("session ended 90s after restore")
	}
}

// failingMedium accepts reads and deletes but refuses every write.
type failingMedium struct {
	*cache.MemoryMedium
}

func (failingMedium) Set(key, value string) error {
	return errors.New("quota exceeded")
}

// TestInactivityWithoutMarker verifies the timeout still fires when the
// medium cannot store the activity marker.
func TestInactivityWithoutMarker(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.New(failingMedium{cache.NewMemoryMedium()}, discardLog, cache.WithClock(c.Now))
	mgr := New(&fakeProvider{}, store, discardLog, WithClock(c.Now), WithCheckInterval(time.Hour))
	t.Cleanup(mgr.Stop)

	if _, err := mgr.SignIn(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	c.Advance(2 * time.Minute)
	if mgr.CheckInactivity(ctx) {
		t.Fatal("logged out after 2 idle minutes")
	}
	c.Advance(8 * time.Minute)
	if !mgr.CheckInactivity(ctx) {
		t.Fatal("session kept after 10 idle minutes")
	}
	if mgr.Current() != nil {
		t.Error("identity kept after inactivity logout")
	}
}

// TestStartAnonymousClearsMarker verifies a leftover marker is dropped when
// nobody is restored.
func TestStartAnonymousClearsMarker(t *testing.T) {
	f := newFixture(t)
	f.medium.Set(cache.LastActivityKey, "1")
	if err := f.mgr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := f.medium.Get(cache.LastActivityKey); ok {
		t.Error("leftover marker kept")
	}
}

func TestChangePasswordRequiresSession(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.ChangePassword(context.Background(), "newsecret"); !errors.Is(err, auth.ErrNotSignedIn) {
		t.Errorf("err = %v, want ErrNotSignedIn", err)
	}
}
