package progress

import "github.com/meltforce/fitcourse/internal/models"

// ExerciseSummary is the display state of one exercise.
type ExerciseSummary struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Done    int    `json:"done"`
	Target  int    `json:"target"`
	Percent int    `json:"percent"`
}

// WorkoutSummary is the display state of one workout.
type WorkoutSummary struct {
	WorkoutID string            `json:"workout_id"`
	Name      string            `json:"name"`
	Exercises []ExerciseSummary `json:"exercises,omitempty"`
	Complete  bool              `json:"complete"`
	Started   bool              `json:"started"`
}

// SummarizeWorkout builds the per-exercise breakdown for a workout.
func SummarizeWorkout(rec models.ProgressRecord, w models.Workout) WorkoutSummary {
	s := WorkoutSummary{
		WorkoutID: w.ID,
		Name:      w.Name,
		Complete:  IsWorkoutComplete(rec, w),
		Started:   !IsZero(rec, w),
	}
	for _, ex := range w.Exercises {
		s.Exercises = append(s.Exercises, ExerciseSummary{
			Name:    ex.Name,
			Label:   ExerciseLabel(ex.Name),
			Done:    rec.Count(ex.Name),
			Target:  ex.Quantity,
			Percent: ExerciseCompletionPercent(rec, ex),
		})
	}
	return s
}
