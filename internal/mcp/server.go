package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, sess Session, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FitCourse", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FitCourse training server. Browse the course catalog, enroll in courses, read workouts and log exercise repetitions. Per-user data is scoped to the signed-in account."),
	)

	h := &handlers{ds: ds, sess: sess, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListCourses, Handler: h.listCourses},
		server.ServerTool{Tool: toolMyCourses, Handler: h.myCourses},
		server.ServerTool{Tool: toolCourseProgress, Handler: h.courseProgress},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolSaveProgress, Handler: h.saveProgress},
		server.ServerTool{Tool: toolEnroll, Handler: h.enroll},
		server.ServerTool{Tool: toolUnenroll, Handler: h.unenroll},
		server.ServerTool{Tool: toolResetCourse, Handler: h.resetCourse},
	)

	s.AddResources(
		server.ServerResource{Resource: resCatalog, Handler: h.catalog},
		server.ServerResource{Resource: resMyCourses, Handler: h.enrolledCourses},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds   DataSource
	sess Session
	log  *slog.Logger
}

// --- Resource definitions ---

var resCatalog = mcp.NewResource(
	"fitcourse://catalog",
	"Course Catalog",
	mcp.WithResourceDescription("Every course with its workouts, ordered as shown to users"),
	mcp.WithMIMEType("application/json"),
)

var resMyCourses = mcp.NewResource(
	"fitcourse://my_courses",
	"My Courses",
	mcp.WithResourceDescription("Courses the signed-in user is enrolled in"),
	mcp.WithMIMEType("application/json"),
)
