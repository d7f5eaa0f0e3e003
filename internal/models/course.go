package models

import (
	"fmt"
	"sort"
)

// Course is a catalog entry as stored under courses/courses/{id}.
type Course struct {
	ID            string   `json:"_id"`
	NameEN        string   `json:"nameEN"`
	NameRU        string   `json:"nameRU"`
	Description   string   `json:"description,omitempty"`
	Directions    []string `json:"directions,omitempty"`
	Fitting       []string `json:"fitting,omitempty"`
	Order         int      `json:"order"`
	Workouts      []string `json:"workouts"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Difficulty    int      `json:"difficult"`
	TotalDuration int      `json:"totalDuration,omitempty"`
}

// MaxDifficulty is the highest difficulty level a course can carry.
const MaxDifficulty = 5

// HasWorkout reports whether workoutID belongs to the course.
func (c *Course) HasWorkout(workoutID string) bool {
	for _, id := range c.Workouts {
		if id == workoutID {
			return true
		}
	}
	return false
}

// Workout is a single training session as stored under courses/workouts/{id}.
// A workout without exercises is tracked as a whole (complete or not).
type Workout struct {
	ID        string     `json:"_id"`
	Name      string     `json:"name"`
	Video     string     `json:"video"`
	Exercises []Exercise `json:"exercises,omitempty"`
}

// Exercise is a repetition target within a workout. Name doubles as the
// key of the exercise's counter in a ProgressRecord.
type Exercise struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Validate checks the exercise list: every quantity must be positive and
// names must be unique within the workout.
func (w *Workout) Validate() error {
	seen := make(map[string]bool, len(w.Exercises))
	for _, ex := range w.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("workout %s: exercise with empty name", w.ID)
		}
		if ex.Name == CompletedKey {
			return fmt.Errorf("workout %s: exercise name %q is reserved", w.ID, CompletedKey)
		}
		if ex.Quantity <= 0 {
			return fmt.Errorf("workout %s: exercise %q has non-positive quantity %d", w.ID, ex.Name, ex.Quantity)
		}
		if seen[ex.Name] {
			return fmt.Errorf("workout %s: duplicate exercise %q", w.ID, ex.Name)
		}
		seen[ex.Name] = true
	}
	return nil
}

// CoursesFromMap turns the id-keyed catalog node into a list ordered by
// Order (ties broken by ID). Missing ids are filled from the map key and
// difficulty is clamped into [0, MaxDifficulty].
func CoursesFromMap(m map[string]Course) []Course {
	courses := make([]Course, 0, len(m))
	for id, c := range m {
		c.ID = id
		c.Difficulty = min(max(c.Difficulty, 0), MaxDifficulty)
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Order != courses[j].Order {
			return courses[i].Order < courses[j].Order
		}
		return courses[i].ID < courses[j].ID
	})
	return courses
}
