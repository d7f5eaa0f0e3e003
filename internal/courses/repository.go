// Package courses reads the course catalog and a user's enrollments and
// progress from the remote store, keeping the catalog and enrollment lists
// in the local cache.
package courses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/meltforce/fitcourse/internal/cache"
	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/remote"
)

// ErrRemoteUnavailable is returned when the remote store could not be read
// or written. It is the same value as remote.ErrUnavailable.
var ErrRemoteUnavailable = remote.ErrUnavailable

// ErrInvalidID is returned for course or workout ids that cannot form a
// store path. It is the same value as remote.ErrInvalidPath.
var ErrInvalidID = remote.ErrInvalidPath

// DefaultFanout bounds concurrent remote requests of a single operation.
const DefaultFanout = 8

// IdentitySource reports who is signed in right now. The repository checks
// it before committing fetched per-user data to the cache.
type IdentitySource interface {
	Current() *models.Identity
}

// Repository is the single entry point for course data.
type Repository struct {
	store  remote.Store
	cache  *cache.Store
	ids    IdentitySource
	fanout int
	log    *slog.Logger

	locks keyedMutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithFanout overrides DefaultFanout.
func WithFanout(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// WithIdentitySource enables the identity re-check before cache writes.
func WithIdentitySource(src IdentitySource) Option {
	return func(r *Repository) { r.ids = src }
}

func New(store remote.Store, c *cache.Store, log *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		cache:  c,
		fanout: DefaultFanout,
		log:    log,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// unavailable wraps a store failure in ErrRemoteUnavailable. Ids rejected
// before any request keep ErrInvalidID instead.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrInvalidID) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}

// stillCurrent reports whether id is still the signed-in identity.
func (r *Repository) stillCurrent(id *models.Identity) bool {
	if r.ids == nil {
		return true
	}
	cur := r.ids.Current()
	return cur != nil && cur.UID == id.UID
}

// ListCatalog returns every course ordered by Order. A fresh cached copy
// is served without touching the remote store.
func (r *Repository) ListCatalog(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if r.cache.Get(cache.CatalogKey, &courses) {
		return courses, nil
	}

	var m map[string]models.Course
	if _, err := r.store.Read(ctx, remote.Courses(), &m); err != nil {
		return nil, unavailable("fetching catalog", err)
	}
	courses = models.CoursesFromMap(m)
	r.cache.Set(cache.CatalogKey, courses)
	r.log.Debug("catalog fetched", "courses", len(courses))
	return courses, nil
}

// GetCourse fetches one course, bypassing the cache. It returns nil, nil
// when the course does not exist.
func (r *Repository) GetCourse(ctx context.Context, courseID string) (*models.Course, error) {
	var c models.Course
	ok, err := r.store.Read(ctx, remote.Course(courseID), &c)
	if err != nil {
		return nil, unavailable("fetching course "+courseID, err)
	}
	if !ok {
		return nil, nil
	}
	c.ID = courseID
	c.Difficulty = min(max(c.Difficulty, 0), models.MaxDifficulty)
	return &c, nil
}

// GetWorkout fetches one workout definition. It returns nil, nil when the
// workout does not exist.
func (r *Repository) GetWorkout(ctx context.Context, workoutID string) (*models.Workout, error) {
	var w models.Workout
	ok, err := r.store.Read(ctx, remote.Workout(workoutID), &w)
	if err != nil {
		return nil, unavailable("fetching workout "+workoutID, err)
	}
	if !ok {
		return nil, nil
	}
	w.ID = workoutID
	return &w, nil
}

func (r *Repository) enrollmentIDs(ctx context.Context, uid string) (idList, error) {
	var ids idList
	if _, err := r.store.Read(ctx, remote.UserCourses(uid), &ids); err != nil {
		return nil, unavailable("fetching enrollments", err)
	}
	return ids, nil
}

// ListEnrollments returns the courses id is enrolled in, in enrollment
// order. Courses that no longer exist are skipped. Without an identity the
// result is empty and nothing is fetched.
func (r *Repository) ListEnrollments(ctx context.Context, id *models.Identity) ([]models.Course, error) {
	if id == nil {
		return []models.Course{}, nil
	}
	key := cache.EnrollmentKey(id.UID)

	var courses []models.Course
	if r.cache.Get(key, &courses) {
		return courses, nil
	}

	ids, err := r.enrollmentIDs(ctx, id.UID)
	if err != nil {
		return nil, err
	}
	courses, complete := r.fetchCourses(ctx, ids)

	switch {
	case !complete:
		r.log.Warn("enrollment list partially fetched, not caching", "uid", id.UID)
	case !r.stillCurrent(id):
		r.log.Info("identity changed during fetch, not caching", "uid", id.UID)
	default:
		r.cache.Set(key, courses)
	}
	return courses, nil
}

// fetchCourses loads courses concurrently, preserving the order of ids.
// complete is false when at least one fetch failed.
func (r *Repository) fetchCourses(ctx context.Context, ids []string) ([]models.Course, bool) {
	results := make([]*models.Course, len(ids))
	failed := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(r.fanout)
	for i, cid := range ids {
		g.Go(func() error {
			c, err := r.GetCourse(ctx, cid)
			if err != nil {
				r.log.Warn("course fetch failed", "course", cid, "error", err)
				failed[i] = true
				return nil
			}
			results[i] = c
			return nil
		})
	}
	_ = g.Wait()

	courses := make([]models.Course, 0, len(ids))
	for _, c := range results {
		if c != nil {
			courses = append(courses, *c)
		}
	}
	return courses, !slices.Contains(failed, true)
}

// refreshEnrollments drops the cached list and reloads it.
func (r *Repository) refreshEnrollments(ctx context.Context, id *models.Identity) {
	r.cache.Delete(cache.EnrollmentKey(id.UID))
	if _, err := r.ListEnrollments(ctx, id); err != nil {
		r.log.Warn("enrollment refresh failed", "uid", id.UID, "error", err)
	}
}

// Enroll adds courseID to the identity's enrollments. Enrolling twice is a
// no-op. Calls for the same identity are serialized.
func (r *Repository) Enroll(ctx context.Context, id *models.Identity, courseID string) error {
	if id == nil {
		return nil
	}
	if err := remote.Course(courseID).Validate(); err != nil {
		return err
	}
	unlock := r.locks.Lock(id.UID)
	defer unlock()

	ids, err := r.enrollmentIDs(ctx, id.UID)
	if err != nil {
		return err
	}
	if slices.Contains(ids, courseID) {
		return nil
	}
	ids = append(ids, courseID)
	if err := r.store.Write(ctx, remote.UserCourses(id.UID), ids); err != nil {
		return unavailable("enrolling in "+courseID, err)
	}
	r.log.Info("enrolled", "uid", id.UID, "course", courseID)

	r.refreshEnrollments(ctx, id)
	return nil
}

// Unenroll removes courseID from the identity's enrollments and deletes the
// progress of every workout in the course. Progress deletions that fail are
// logged and do not fail the call. For a course that is not enrolled it does
// nothing, progress included.
func (r *Repository) Unenroll(ctx context.Context, id *models.Identity, courseID string) error {
	if id == nil {
		return nil
	}
	if err := remote.Course(courseID).Validate(); err != nil {
		return err
	}
	unlock := r.locks.Lock(id.UID)
	defer unlock()

	ids, err := r.enrollmentIDs(ctx, id.UID)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, courseID) {
		return nil
	}
	kept := slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == courseID })
	if err := r.store.Write(ctx, remote.UserCourses(id.UID), kept); err != nil {
		return unavailable("unenrolling from "+courseID, err)
	}
	r.log.Info("unenrolled", "uid", id.UID, "course", courseID)

	course, err := r.GetCourse(ctx, courseID)
	switch {
	case err != nil:
		r.log.Warn("progress cleanup skipped", "course", courseID, "error", err)
	case course != nil:
		for wid, err := range r.deleteProgress(ctx, id.UID, course.Workouts) {
			r.log.Warn("progress delete failed", "uid", id.UID, "workout", wid, "error", err)
		}
	}

	r.refreshEnrollments(ctx, id)
	return nil
}

// ResetCourseProgress deletes the identity's progress for every workout of
// courseID. Absent records are left alone; failed deletions are returned
// together.
func (r *Repository) ResetCourseProgress(ctx context.Context, id *models.Identity, courseID string) error {
	if id == nil {
		return nil
	}
	course, err := r.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return nil
	}

	failures := r.deleteProgress(ctx, id.UID, course.Workouts)
	if len(failures) == 0 {
		r.log.Info("course progress reset", "uid", id.UID, "course", courseID)
		return nil
	}
	errs := make([]error, 0, len(failures))
	for wid, err := range failures {
		errs = append(errs, fmt.Errorf("workout %s: %w", wid, err))
	}
	return unavailable("resetting course "+courseID, errors.Join(errs...))
}

// deleteProgress removes progress records concurrently and returns the
// failures keyed by workout id.
func (r *Repository) deleteProgress(ctx context.Context, uid string, workoutIDs []string) map[string]error {
	errs := make([]error, len(workoutIDs))

	var g errgroup.Group
	g.SetLimit(r.fanout)
	for i, wid := range workoutIDs {
		g.Go(func() error {
			errs[i] = r.store.Delete(ctx, remote.Progress(uid, wid))
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			failures[workoutIDs[i]] = err
		}
	}
	return failures
}
