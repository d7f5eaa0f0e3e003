package courses

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/progress"
	"github.com/meltforce/fitcourse/internal/remote"
)

// GetProgress returns the stored record for one workout, or nil when the
// user has not logged anything for it.
func (r *Repository) GetProgress(ctx context.Context, id *models.Identity, workoutID string) (models.ProgressRecord, error) {
	if id == nil {
		return nil, nil
	}
	var raw map[string]float64
	ok, err := r.store.Read(ctx, remote.Progress(id.UID, workoutID), &raw)
	if err != nil {
		return nil, unavailable("fetching progress for "+workoutID, err)
	}
	if !ok {
		return nil, nil
	}
	return models.RecordFromFloats(raw), nil
}

// SaveProgress sanitizes raw with progress.Valid and stores the result,
// replacing any previous record. The stored record is returned.
func (r *Repository) SaveProgress(ctx context.Context, id *models.Identity, workoutID string, raw map[string]float64) (models.ProgressRecord, error) {
	if id == nil {
		return nil, nil
	}
	rec := progress.Valid(raw)
	if err := r.store.Write(ctx, remote.Progress(id.UID, workoutID), rec); err != nil {
		return nil, unavailable("saving progress for "+workoutID, err)
	}
	r.log.Info("progress saved", "uid", id.UID, "workout", workoutID, "entries", len(rec))
	return rec, nil
}

// StartWorkout stores the initial record for w when its video starts,
// unless a record already exists. It returns the record now in effect.
func (r *Repository) StartWorkout(ctx context.Context, id *models.Identity, w *models.Workout) (models.ProgressRecord, error) {
	if id == nil || w == nil {
		return nil, nil
	}
	existing, err := r.GetProgress(ctx, id, w.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	rec := progress.InitialRecord(*w)
	if err := r.store.Write(ctx, remote.Progress(id.UID, w.ID), rec); err != nil {
		return nil, unavailable("starting workout "+w.ID, err)
	}
	return rec, nil
}

// WorkoutResult is one workout of a course with the user's record.
// Degraded is set when the workout or its record could not be fetched and
// defaults were used instead.
type WorkoutResult struct {
	Workout  models.Workout          `json:"workout"`
	Record   models.ProgressRecord   `json:"record,omitempty"`
	Summary  progress.WorkoutSummary `json:"summary"`
	Degraded bool                    `json:"degraded,omitempty"`
}

// CourseProgress is the completion state of a whole course.
type CourseProgress struct {
	Course   models.Course   `json:"course"`
	Workouts []WorkoutResult `json:"workouts"`
	Percent  int             `json:"percent"`
	Action   progress.Action `json:"action"`
}

// CourseProgress fetches every workout of course together with the user's
// record for it. Individual fetch failures degrade to an empty workout or
// zero progress; the call itself does not fail on them.
func (r *Repository) CourseProgress(ctx context.Context, id *models.Identity, course *models.Course) *CourseProgress {
	results := make([]WorkoutResult, len(course.Workouts))

	var g errgroup.Group
	g.SetLimit(r.fanout)
	for i, wid := range course.Workouts {
		g.Go(func() error {
			res := WorkoutResult{Workout: models.Workout{ID: wid}}
			w, err := r.GetWorkout(ctx, wid)
			switch {
			case err != nil:
				r.log.Warn("workout fetch failed", "workout", wid, "error", err)
				res.Degraded = true
			case w != nil:
				res.Workout = *w
			}
			rec, err := r.GetProgress(ctx, id, wid)
			if err != nil {
				r.log.Warn("progress fetch failed", "workout", wid, "error", err)
				res.Degraded = true
			}
			res.Record = rec
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	records := make(map[string]models.ProgressRecord, len(results))
	workouts := make([]models.Workout, len(results))
	for i := range results {
		results[i].Summary = progress.SummarizeWorkout(results[i].Record, results[i].Workout)
		records[results[i].Workout.ID] = results[i].Record
		workouts[i] = results[i].Workout
	}
	pct := progress.CourseCompletionPercent(records, workouts)
	return &CourseProgress{
		Course:   *course,
		Workouts: results,
		Percent:  pct,
		Action:   progress.NextAction(pct),
	}
}
