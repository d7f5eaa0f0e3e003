package mcp

import (
	"context"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/progress"
)

// --- Tool definitions ---

var toolListCourses = mcp.NewTool("list_courses",
	mcp.WithDescription("List every course in the catalog with id, names, difficulty (0-5) and workout ids."),
)

var toolMyCourses = mcp.NewTool("my_courses",
	mcp.WithDescription("List the courses the signed-in user is enrolled in."),
)

var toolCourseProgress = mcp.NewTool("course_progress",
	mcp.WithDescription("Show per-workout and overall completion of a course for the signed-in user, plus the suggested next action (start, continue or restart)."),
	mcp.WithString("course_id", mcp.Required(), mcp.Description("Course id from list_courses")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a workout with its exercises. When signed in, includes the user's repetition counts per exercise."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("Workout id from a course's workouts list")),
)

var toolSaveProgress = mcp.NewTool("save_progress",
	mcp.WithDescription("Record repetitions done for a workout. Counts are clamped to 0-100. For workouts without exercises pass {\"completed\": 1}."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("Workout id")),
	mcp.WithObject("counts", mcp.Required(), mcp.Description("Map of exercise name to repetitions done")),
)

var toolEnroll = mcp.NewTool("enroll",
	mcp.WithDescription("Add a course to the signed-in user's courses. Enrolling twice is a no-op."),
	mcp.WithString("course_id", mcp.Required(), mcp.Description("Course id")),
)

var toolUnenroll = mcp.NewTool("unenroll",
	mcp.WithDescription("Remove a course from the signed-in user's courses and delete its workout progress."),
	mcp.WithString("course_id", mcp.Required(), mcp.Description("Course id")),
)

var toolResetCourse = mcp.NewTool("reset_course_progress",
	mcp.WithDescription("Delete the signed-in user's progress for every workout of a course. The enrollment is kept."),
	mcp.WithString("course_id", mcp.Required(), mcp.Description("Course id")),
)

// --- Helpers ---

// identity returns the signed-in identity and records activity, or a tool
// error result when nobody is signed in.
func (h *handlers) identity() (*models.Identity, *mcp.CallToolResult) {
	id := h.sess.Current()
	if id == nil {
		return nil, mcp.NewToolResultError(auth.Message(auth.ErrNotSignedIn))
	}
	h.sess.RecordActivity()
	return id, nil
}

func (h *handlers) failure(tool string, err error) *mcp.CallToolResult {
	h.log.Warn("mcp tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func (h *handlers) course(ctx context.Context, courseID string) (*models.Course, *mcp.CallToolResult) {
	c, err := h.ds.GetCourse(ctx, courseID)
	if err != nil {
		return nil, h.failure("get_course", err)
	}
	if c == nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("course %q not found", courseID))
	}
	return c, nil
}

// --- Handlers ---

func (h *handlers) listCourses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courses, err := h.ds.ListCatalog(ctx)
	if err != nil {
		return h.failure("list_courses", err), nil
	}
	return mcp.NewToolResultJSON(courses)
}

func (h *handlers) myCourses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := h.identity()
	if res != nil {
		return res, nil
	}
	courses, err := h.ds.ListEnrollments(ctx, id)
	if err != nil {
		return h.failure("my_courses", err), nil
	}
	return mcp.NewToolResultJSON(courses)
}

func (h *handlers) courseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseID, err := req.RequireString("course_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, res := h.identity()
	if res != nil {
		return res, nil
	}
	c, res := h.course(ctx, courseID)
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultJSON(h.ds.CourseProgress(ctx, id, c))
}

type workoutResult struct {
	Workout models.Workout           `json:"workout"`
	Summary *progress.WorkoutSummary `json:"summary,omitempty"`
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workoutID, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := h.ds.GetWorkout(ctx, workoutID)
	if err != nil {
		return h.failure("get_workout", err), nil
	}
	if w == nil {
		return mcp.NewToolResultError(fmt.Sprintf("workout %q not found", workoutID)), nil
	}

	out := workoutResult{Workout: *w}
	if id := h.sess.Current(); id != nil {
		h.sess.RecordActivity()
		rec, err := h.ds.GetProgress(ctx, id, workoutID)
		if err != nil {
			return h.failure("get_workout", err), nil
		}
		s := progress.SummarizeWorkout(rec, *w)
		out.Summary = &s
	}
	return mcp.NewToolResultJSON(out)
}

// parseCounts converts the counts argument. JSON numbers arrive as float64;
// anything else is rejected by name.
func parseCounts(v any) (map[string]float64, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("counts must be an object of exercise name to number")
	}
	counts := make(map[string]float64, len(obj))
	for name, raw := range obj {
		n, ok := raw.(float64)
		if !ok || math.IsNaN(n) {
			return nil, fmt.Errorf("count for %q must be a number", name)
		}
		counts[name] = n
	}
	return counts, nil
}

func (h *handlers) saveProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workoutID, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	counts, err := parseCounts(req.GetArguments()["counts"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, res := h.identity()
	if res != nil {
		return res, nil
	}

	w, err := h.ds.GetWorkout(ctx, workoutID)
	if err != nil {
		return h.failure("save_progress", err), nil
	}
	if w == nil {
		return mcp.NewToolResultError(fmt.Sprintf("workout %q not found", workoutID)), nil
	}
	rec, err := h.ds.SaveProgress(ctx, id, workoutID, counts)
	if err != nil {
		return h.failure("save_progress", err), nil
	}
	return mcp.NewToolResultJSON(progress.SummarizeWorkout(rec, *w))
}

// mutateCourse runs a per-user course operation after checking the course
// exists.
func (h *handlers) mutateCourse(ctx context.Context, req mcp.CallToolRequest, tool string,
	fn func(context.Context, *models.Identity, string) error) (*mcp.CallToolResult, error) {
	courseID, err := req.RequireString("course_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, res := h.identity()
	if res != nil {
		return res, nil
	}
	if _, res := h.course(ctx, courseID); res != nil {
		return res, nil
	}
	if err := fn(ctx, id, courseID); err != nil {
		return h.failure(tool, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: ok (%s)", tool, courseID)), nil
}

func (h *handlers) enroll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.mutateCourse(ctx, req, "enroll", h.ds.Enroll)
}

func (h *handlers) unenroll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.mutateCourse(ctx, req, "unenroll", h.ds.Unenroll)
}

func (h *handlers) resetCourse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.mutateCourse(ctx, req, "reset_course_progress", h.ds.ResetCourseProgress)
}
