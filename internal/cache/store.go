package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is how long catalog and enrollment entries are trusted.
const DefaultTTL = 8 * time.Hour

// Well-known keys.
const (
	CatalogKey      = "allCourses"
	LastActivityKey = "lastActivity"

	enrollmentPrefix = "userCourses_"
)

// EnrollmentKey returns the cache key for a user's enrolled courses.
func EnrollmentKey(uid string) string {
	return enrollmentPrefix + uid
}

// Entry is the stored envelope: the payload plus the epoch-millis write time.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store is a time-expiring JSON cache over a Medium. Every operation is
// best-effort: failures are logged and surface as a miss or a no-op.
type Store struct {
	medium Medium
	ttl    time.Duration
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store on top of medium.
func New(medium Medium, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		medium: medium,
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Medium exposes the underlying medium for raw markers such as lastActivity.
func (s *Store) Medium() Medium {
	return s.medium
}

// TTL returns the store-wide expiry.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get decodes the entry under key into dst and reports whether a valid
// entry was found. Expired entries are left in place.
func (s *Store) Get(key string, dst any) bool {
	raw, ok, err := s.medium.Get(key)
	if err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		s.log.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	if s.now().UnixMilli()-e.Timestamp >= s.ttl.Milliseconds() {
		return false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		s.log.Warn("cache payload decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores data under key stamped with the current time.
func (s *Store) Set(key string, data any) {
	if err := s.set(key, data); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *Store) set(key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	raw, err := json.Marshal(Entry{Data: payload, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	return s.medium.Set(key, string(raw))
}

// Delete evicts key.
func (s *Store) Delete(key string) {
	if err := s.medium.Delete(key); err != nil {
		s.log.Warn("cache delete failed", "key", key, "error", err)
	}
}

// DeletePrefix evicts every key starting with prefix.
func (s *Store) DeletePrefix(prefix string) {
	keys, err := s.medium.Keys(prefix)
	if err != nil {
		s.log.Warn("cache list failed", "prefix", prefix, "error", err)
		return
	}
	for _, k := range keys {
		s.Delete(k)
	}
}

// EvictEnrollments drops every per-user enrollment entry.
func (s *Store) EvictEnrollments() {
	s.DeletePrefix(enrollmentPrefix)
}
