package remote

import (
	"fmt"
	"strings"
)

// Path addresses a node in the remote tree, e.g. "userProgress/u1/w3".
type Path string

// Segments splits the path into its components.
func (p Path) Segments() []string {
	s := strings.Trim(string(p), "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

// Child appends one segment.
func (p Path) Child(seg string) Path {
	return Path(string(p) + "/" + seg)
}

func (p Path) String() string { return string(p) }

// Root nodes of the tree.
const (
	rootCourses      = "courses"
	rootUserCourses  = "userCourses"
	rootUsers        = "users"
	rootUserProgress = "userProgress"
)

// Courses is the catalog node: course id → course.
func Courses() Path { return Path(rootCourses + "/courses") }

// Course is a single catalog entry.
func Course(id string) Path { return Courses().Child(id) }

// Workouts is the node holding every workout definition.
func Workouts() Path { return Path(rootCourses + "/workouts") }

// Workout is a single workout definition.
func Workout(id string) Path { return Workouts().Child(id) }

// UserCourses is the ordered list of course ids a user is enrolled in.
func UserCourses(uid string) Path { return Path(rootUserCourses).Child(uid) }

// User is a user's profile node.
func User(uid string) Path { return Path(rootUsers).Child(uid) }

// UserProgress holds every progress record of a user, keyed by workout id.
func UserProgress(uid string) Path { return Path(rootUserProgress).Child(uid) }

// Progress is the record for one (user, workout) pair.
func Progress(uid, workoutID string) Path { return UserProgress(uid).Child(workoutID) }

// Validate rejects empty paths and segments containing characters the
// hosted database does not allow in keys.
func (p Path) Validate() error {
	segs := p.Segments()
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
		if strings.ContainsAny(s, ".#$[]") {
			return fmt.Errorf("%w: %q: segment %q contains a reserved character", ErrInvalidPath, p, s)
		}
	}
	return nil
}

// Owner returns the uid a per-user path belongs to, or "" for shared nodes
// such as the catalog.
func (p Path) Owner() string {
	segs := p.Segments()
	if len(segs) < 2 {
		return ""
	}
	switch segs[0] {
	case rootUserCourses, rootUsers, rootUserProgress:
		return segs[1]
	}
	return ""
}

// IsCatalog reports whether the path lies under the shared catalog.
func (p Path) IsCatalog() bool {
	segs := p.Segments()
	return len(segs) > 0 && segs[0] == rootCourses
}

// IsUserScoped reports whether the path lies under a per-user root.
func (p Path) IsUserScoped() bool {
	segs := p.Segments()
	if len(segs) == 0 {
		return false
	}
	switch segs[0] {
	case rootUserCourses, rootUsers, rootUserProgress:
		return true
	}
	return false
}
