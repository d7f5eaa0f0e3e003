package cache

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, m Medium) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(m, discard, WithClock(clock.Now)), clock
}

type payload struct {
	Names []string `json:"names"`
}

// TestGetAfterSet verifies a value is readable immediately after it is written.
func TestGetAfterSet(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryMedium())
	s.Set("k", payload{Names: []string{"yoga", "stretch"}})

	var got payload
	if !s.Get("k", &got) {
		t.Fatal("expected hit")
	}
	if len(got.Names) != 2 || got.Names[0] != "yoga" {
		t.Errorf("got %+v", got)
	}
}

// TestTTLExpiry verifies entries stop being served once the TTL elapses and
// that expired entries are shadowed rather than deleted.
func TestTTLExpiry(t *testing.T) {
	m := NewMemoryMedium()
	s, clock := newTestStore(t, m)
	s.Set("k", payload{Names: []string{"a"}})

	clock.Advance(DefaultTTL - time.Millisecond)
	var got payload
	if !s.Get("k", &got) {
		t.Fatal("expected hit just before TTL")
	}

	clock.Advance(time.Millisecond)
	if s.Get("k", &got) {
		t.Fatal("expected miss at TTL")
	}
	if _, ok, _ := m.Get("k"); !ok {
		t.Error("expired entry should remain in the medium")
	}
}

// TestWithTTL verifies a per-store TTL override.
func TestWithTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := New(NewMemoryMedium(), discard, WithClock(clock.Now), WithTTL(time.Minute))
	s.Set("k", 1)
	clock.Advance(2 * time.Minute)
	var v int
	if s.Get("k", &v) {
		t.Error("expected miss after custom TTL")
	}
}

// TestSetOverwrites verifies a second write replaces the value and timestamp.
func TestSetOverwrites(t *testing.T) {
	s, clock := newTestStore(t, NewMemoryMedium())
	s.Set("k", 1)
	clock.Advance(DefaultTTL - time.Minute)
	s.Set("k", 2)
	clock.Advance(time.Hour)

	var v int
	if !s.Get("k", &v) {
		t.Fatal("expected hit: timestamp should be refreshed by the second Set")
	}
	if v != 2 {
		t.Errorf("v = %d, want 2", v)
	}
}

// TestCorruptEntry verifies unparsable entries read as a miss.
func TestCorruptEntry(t *testing.T) {
	m := NewMemoryMedium()
	m.Set("k", "{not json")
	s, _ := newTestStore(t, m)

	var v int
	if s.Get("k", &v) {
		t.Error("expected miss for corrupt entry")
	}
}

type brokenMedium struct{}

var errQuota = errors.New("quota exceeded")

func (brokenMedium) Get(string) (string, bool, error) { return "", false, errQuota }
func (brokenMedium) Set(string, string) error         { return errQuota }
func (brokenMedium) Delete(string) error              { return errQuota }
func (brokenMedium) Keys(string) ([]string, error)    { return nil, errQuota }

// TestBrokenMediumIsAbsorbed verifies medium failures never reach the caller.
func TestBrokenMediumIsAbsorbed(t *testing.T) {
	s, _ := newTestStore(t, brokenMedium{})
	s.Set("k", 1)
	s.Delete("k")
	s.DeletePrefix("user")

	var v int
	if s.Get("k", &v) {
		t.Error("expected miss from broken medium")
	}
}

// TestUnencodableValue verifies a marshal failure is a silent no-op.
func TestUnencodableValue(t *testing.T) {
	m := NewMemoryMedium()
	s, _ := newTestStore(t, m)
	s.Set("k", make(chan int))
	if _, ok, _ := m.Get("k"); ok {
		t.Error("nothing should be written for an unencodable value")
	}
}

// TestEvictEnrollments verifies only per-user enrollment entries are removed.
func TestEvictEnrollments(t *testing.T) {
	m := NewMemoryMedium()
	s, _ := newTestStore(t, m)
	s.Set(CatalogKey, []string{"c1"})
	s.Set(EnrollmentKey("u1"), []string{"c1"})
	s.Set(EnrollmentKey("u2"), []string{"c2"})

	s.EvictEnrollments()

	keys, _ := m.Keys("")
	if len(keys) != 1 || keys[0] != CatalogKey {
		t.Errorf("keys = %v, want [%s]", keys, CatalogKey)
	}
}

// TestEnrollmentKey verifies the namespaced key layout.
func TestEnrollmentKey(t *testing.T) {
	if got := EnrollmentKey("abc"); got != "userCourses_abc" {
		t.Errorf("EnrollmentKey = %q", got)
	}
}
