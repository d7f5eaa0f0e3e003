package courses

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/progress"
	"github.com/meltforce/fitcourse/internal/remote"
)

// TestSaveProgressSanitizes verifies submitted values are clamped and
// non-finite entries dropped before storage.
func TestSaveProgressSanitizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.repo.SaveProgress(ctx, f.user, "w1", map[string]float64{
		"Squats": 4444, "Lunges": -5, "Bad": math.NaN(),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := models.ProgressRecord{"Squats": 100, "Lunges": 0}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("saved = %v, want %v", rec, want)
	}
	got, err := f.repo.GetProgress(ctx, f.user, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stored = %v, want %v", got, want)
	}
}

func TestProgressWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if rec, err := f.repo.SaveProgress(ctx, nil, "w1", map[string]float64{"Squats": 1}); rec != nil || err != nil {
		t.Errorf("SaveProgress = %v, %v", rec, err)
	}
	if rec, err := f.repo.GetProgress(ctx, nil, "w1"); rec != nil || err != nil {
		t.Errorf("GetProgress = %v, %v", rec, err)
	}
}

// TestStartWorkout verifies the initial record is written once and never
// overwrites logged progress.
func TestStartWorkout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w1, _ := f.repo.GetWorkout(ctx, "w1")
	rec, err := f.repo.StartWorkout(ctx, f.user, w1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec, models.ProgressRecord{"Squats": 0}) {
		t.Errorf("initial = %v", rec)
	}

	if _, err := f.repo.SaveProgress(ctx, f.user, "w1", map[string]float64{"Squats": 7}); err != nil {
		t.Fatal(err)
	}
	rec, err = f.repo.StartWorkout(ctx, f.user, w1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Count("Squats") != 7 {
		t.Errorf("restart overwrote progress: %v", rec)
	}

	w2, _ := f.repo.GetWorkout(ctx, "w2")
	rec, err = f.repo.StartWorkout(ctx, f.user, w2)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Count(models.CompletedKey) != 100 {
		t.Errorf("binary workout = %v, want completed", rec)
	}
}

// TestCourseProgress verifies the per-workout breakdown and course percent.
func TestCourseProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.repo.SaveProgress(ctx, f.user, "w1", map[string]float64{"Squats": 10}); err != nil {
		t.Fatal(err)
	}

	c1, _ := f.repo.GetCourse(ctx, "c1")
	cp := f.repo.CourseProgress(ctx, f.user, c1)
	if cp.Percent != 50 || cp.Action != progress.ActionContinue {
		t.Errorf("percent = %d action = %s", cp.Percent, cp.Action)
	}
	if len(cp.Workouts) != 2 || cp.Workouts[0].Workout.Name != "Day 1" || !cp.Workouts[0].Summary.Complete {
		t.Errorf("workouts = %+v", cp.Workouts)
	}

	if _, err := f.repo.SaveProgress(ctx, f.user, "w2", map[string]float64{"completed": 100}); err != nil {
		t.Fatal(err)
	}
	if cp := f.repo.CourseProgress(ctx, f.user, c1); cp.Percent != 100 || cp.Action != progress.ActionRestart {
		t.Errorf("percent = %d action = %s", cp.Percent, cp.Action)
	}
}

// TestCourseProgressDegrades verifies a failed fetch counts as no progress
// instead of failing the whole course.
func TestCourseProgressDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, wid := range []string{"w1", "w2"} {
		if _, err := f.repo.SaveProgress(ctx, f.user, wid, map[string]float64{"Squats": 10, "completed": 100}); err != nil {
			t.Fatal(err)
		}
	}
	c1, _ := f.repo.GetCourse(ctx, "c1")
	f.store.failRead = func(p remote.Path) bool { return p == remote.Progress("u1", "w2") }

	cp := f.repo.CourseProgress(ctx, f.user, c1)
	if cp.Percent != 50 {
		t.Errorf("percent = %d, want 50", cp.Percent)
	}
	if !cp.Workouts[1].Degraded || cp.Workouts[0].Degraded {
		t.Errorf("degraded flags = %v, %v", cp.Workouts[0].Degraded, cp.Workouts[1].Degraded)
	}
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.repo.GetProfile(ctx, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "u1@example.com" || u.Name() != "u1" {
		t.Errorf("fallback profile = %+v", u)
	}

	if err := f.repo.EnsureProfile(ctx, f.user); err != nil {
		t.Fatal(err)
	}
	if _, err := f.repo.SetDisplayName(ctx, f.user, "Anna"); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.EnsureProfile(ctx, f.user); err != nil {
		t.Fatal(err)
	}
	u, err = f.repo.GetProfile(ctx, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if u.Name() != "Anna" || u.UID != "u1" {
		t.Errorf("profile = %+v", u)
	}
}
