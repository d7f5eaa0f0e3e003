package mcp

import (
	"context"

	"github.com/meltforce/fitcourse/internal/courses"
	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/session"
)

// DataSource abstracts the course data layer for MCP tools.
type DataSource interface {
	ListCatalog(ctx context.Context) ([]models.Course, error)
	ListEnrollments(ctx context.Context, id *models.Identity) ([]models.Course, error)
	GetCourse(ctx context.Context, courseID string) (*models.Course, error)
	GetWorkout(ctx context.Context, workoutID string) (*models.Workout, error)
	GetProgress(ctx context.Context, id *models.Identity, workoutID string) (models.ProgressRecord, error)
	SaveProgress(ctx context.Context, id *models.Identity, workoutID string, raw map[string]float64) (models.ProgressRecord, error)
	Enroll(ctx context.Context, id *models.Identity, courseID string) error
	Unenroll(ctx context.Context, id *models.Identity, courseID string) error
	ResetCourseProgress(ctx context.Context, id *models.Identity, courseID string) error
	CourseProgress(ctx context.Context, id *models.Identity, course *models.Course) *courses.CourseProgress
}

// Session supplies the acting identity. Every tool call counts as activity.
type Session interface {
	Current() *models.Identity
	RecordActivity()
}

// Compile-time checks.
var (
	_ DataSource = (*courses.Repository)(nil)
	_ Session    = (*session.Manager)(nil)
)
