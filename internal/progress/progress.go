// Package progress turns raw per-exercise counters into completion state.
// Everything here is pure: no I/O and no dependence on call order.
package progress

import (
	"math"
	"strings"

	"github.com/meltforce/fitcourse/internal/models"
)

// MaxValue is the upper bound a submitted counter is clamped to.
const MaxValue = 100

// Valid sanitizes a submitted record: every finite value is clamped into
// [0, MaxValue] and rounded; NaN and infinite values are dropped from the
// result rather than zeroed.
func Valid(raw map[string]float64) models.ProgressRecord {
	rec := make(models.ProgressRecord, len(raw))
	for k, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		rec[k] = int(math.Round(math.Max(0, math.Min(v, MaxValue))))
	}
	return rec
}

// ExerciseCompletionPercent returns round(100 * min(done, target) / target).
// Exercises with a non-positive quantity report 0.
func ExerciseCompletionPercent(rec models.ProgressRecord, ex models.Exercise) int {
	if ex.Quantity <= 0 {
		return 0
	}
	done := min(max(rec.Count(ex.Name), 0), ex.Quantity)
	return int(math.Round(100 * float64(done) / float64(ex.Quantity)))
}

// IsWorkoutComplete reports whether every exercise reached its target, or,
// for a workout without exercises, whether it was marked completed.
func IsWorkoutComplete(rec models.ProgressRecord, w models.Workout) bool {
	if len(w.Exercises) == 0 {
		return rec.Count(models.CompletedKey) == 100
	}
	for _, ex := range w.Exercises {
		if rec.Count(ex.Name) < ex.Quantity {
			return false
		}
	}
	return true
}

// CourseCompletionPercent is the share of complete workouts, rounded.
// records is keyed by workout id; a missing record counts as no progress.
// An empty workout list yields 0.
func CourseCompletionPercent(records map[string]models.ProgressRecord, workouts []models.Workout) int {
	if len(workouts) == 0 {
		return 0
	}
	done := 0
	for _, w := range workouts {
		if IsWorkoutComplete(records[w.ID], w) {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(workouts))))
}

// IsZero reports whether nothing has been logged for the workout yet. It
// picks between "fill in" and "update" wording in the client.
func IsZero(rec models.ProgressRecord, w models.Workout) bool {
	if len(w.Exercises) == 0 {
		return rec.Count(models.CompletedKey) == 0
	}
	for _, v := range rec {
		if v != 0 {
			return false
		}
	}
	return true
}

// InitialRecord is what gets stored when a workout video starts: zeroed
// counters for every exercise, or completed for exercise-less workouts.
func InitialRecord(w models.Workout) models.ProgressRecord {
	if len(w.Exercises) == 0 {
		return models.ProgressRecord{models.CompletedKey: 100}
	}
	rec := make(models.ProgressRecord, len(w.Exercises))
	for _, ex := range w.Exercises {
		rec[ex.Name] = 0
	}
	return rec
}

// Action is the next step offered for a course given its completion.
type Action string

const (
	ActionStart    Action = "start"
	ActionContinue Action = "continue"
	ActionRestart  Action = "restart"
)

// NextAction maps a course percentage to the offered action.
func NextAction(percent int) Action {
	switch {
	case percent <= 0:
		return ActionStart
	case percent >= 100:
		return ActionRestart
	default:
		return ActionContinue
	}
}

// ExerciseLabel strips a trailing parenthesised hint from an exercise name,
// e.g. "Наклоны вперед (10 повторений)" → "Наклоны вперед".
func ExerciseLabel(name string) string {
	label, _, _ := strings.Cut(name, "(")
	return strings.TrimSpace(label)
}
