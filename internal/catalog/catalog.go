// Package catalog loads course catalogs from YAML or JSON files and seeds
// them into a remote store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/remote"
)

// Catalog is the file layout: id-keyed courses and workouts, mirroring the
// courses/courses and courses/workouts nodes.
type Catalog struct {
	Courses  map[string]models.Course  `json:"courses"`
	Workouts map[string]models.Workout `json:"workouts"`
}

// Stats tracks seeding progress.
type Stats struct {
	Courses  int
	Workouts int
}

// LoadFile reads a catalog. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON. Field names are the same in both.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes and validates a JSON catalog.
func ParseJSON(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseYAML decodes a YAML catalog. The document is converted to JSON
// first so the models' json tags apply.
func ParseYAML(data []byte) (*Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting catalog: %w", err)
	}
	return ParseJSON(raw)
}

func (c *Catalog) normalize() {
	for id, course := range c.Courses {
		course.ID = id
		c.Courses[id] = course
	}
	for id, w := range c.Workouts {
		w.ID = id
		c.Workouts[id] = w
	}
}

// Validate checks ids, exercise lists and that every referenced workout is
// defined. All problems are reported together.
func (c *Catalog) Validate() error {
	var errs []error
	for id, course := range c.Courses {
		if err := remote.Course(id).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("course id: %w", err))
		}
		if course.Difficulty < 0 || course.Difficulty > models.MaxDifficulty {
			errs = append(errs, fmt.Errorf("course %s: difficulty %d out of range", id, course.Difficulty))
		}
		for _, wid := range course.Workouts {
			if _, ok := c.Workouts[wid]; !ok {
				errs = append(errs, fmt.Errorf("course %s: unknown workout %s", id, wid))
			}
		}
	}
	for id, w := range c.Workouts {
		if err := remote.Workout(id).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("workout id: %w", err))
		}
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Seeder writes catalogs into a remote store.
type Seeder struct {
	store  remote.Store
	log    *slog.Logger
	dryRun bool
}

// NewSeeder creates a Seeder. With dryRun set nothing is written.
func NewSeeder(store remote.Store, log *slog.Logger, dryRun bool) *Seeder {
	return &Seeder{store: store, log: log, dryRun: dryRun}
}

// Seed replaces the workouts node, then the courses node, so courses never
// point at workouts that are not there yet.
func (s *Seeder) Seed(ctx context.Context, c *Catalog) (*Stats, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{Courses: len(c.Courses), Workouts: len(c.Workouts)}
	if s.dryRun {
		s.log.Info("dry run: catalog not written", "courses", stats.Courses, "workouts", stats.Workouts)
		return stats, nil
	}

	if err := s.store.Write(ctx, remote.Workouts(), c.Workouts); err != nil {
		return nil, fmt.Errorf("writing workouts: %w", err)
	}
	if err := s.store.Write(ctx, remote.Courses(), c.Courses); err != nil {
		return nil, fmt.Errorf("writing courses: %w", err)
	}
	s.log.Info("catalog seeded", "courses", stats.Courses, "workouts", stats.Workouts)
	return stats, nil
}
