package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/remote"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

const sampleYAML = `
courses:
  yoga:
    nameEN: Yoga
    nameRU: Йога
    order: 1
    difficult: 2
    workouts: [w1, w2]
workouts:
  w1:
    name: Morning flow
    video: https://example.com/w1
    exercises:
      - name: Наклоны вперед (10 повторений)
        quantity: 10
  w2:
    name: Stretch
    video: https://example.com/w2
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadYAML verifies YAML files use the same field names as the stored
// JSON and ids are filled from map keys.
func TestLoadYAML(t *testing.T) {
	c, err := LoadFile(writeTemp(t, "catalog.yaml", sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	yoga := c.Courses["yoga"]
	if yoga.ID != "yoga" || yoga.NameRU != "Йога" || yoga.Difficulty != 2 || len(yoga.Workouts) != 2 {
		t.Errorf("course = %+v", yoga)
	}
	if w := c.Workouts["w1"]; w.ID != "w1" || len(w.Exercises) != 1 || w.Exercises[0].Quantity != 10 {
		t.Errorf("workout = %+v", w)
	}
}

func TestLoadJSON(t *testing.T) {
	c, err := LoadFile(writeTemp(t, "catalog.json", `{
		"courses": {"c1": {"nameEN": "Core", "workouts": ["w1"]}},
		"workouts": {"w1": {"name": "Plank", "exercises": [{"name": "Plank", "quantity": 3}]}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Courses["c1"].NameEN != "Core" {
		t.Errorf("courses = %+v", c.Courses)
	}
}

// TestValidateReportsAll verifies every problem in a catalog is reported.
func TestValidateReportsAll(t *testing.T) {
	c := &Catalog{
		Courses: map[string]models.Course{
			"c1": {Workouts: []string{"missing"}, Difficulty: 7},
		},
		Workouts: map[string]models.Workout{
			"w1": {ID: "w1", Exercises: []models.Exercise{{Name: "x", Quantity: 0}}},
		},
	}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown workout missing", "difficulty 7", "non-positive quantity"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

// TestSeed verifies seeded nodes read back as a catalog.
func TestSeed(t *testing.T) {
	ctx := context.Background()
	c, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	store := remote.NewMemoryStore()
	stats, err := NewSeeder(store, discardLog, false).Seed(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Courses != 1 || stats.Workouts != 2 {
		t.Errorf("stats = %+v", stats)
	}

	var courses map[string]models.Course
	if ok, err := store.Read(ctx, remote.Courses(), &courses); !ok || err != nil {
		t.Fatalf("read courses: %v %v", ok, err)
	}
	var w models.Workout
	if ok, err := store.Read(ctx, remote.Workout("w2"), &w); !ok || err != nil || w.Name != "Stretch" {
		t.Errorf("read workout = %+v %v %v", w, ok, err)
	}
}

func TestSeedDryRun(t *testing.T) {
	c, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	store := remote.NewMemoryStore()
	if _, err := NewSeeder(store, discardLog, true).Seed(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	var v any
	if ok, _ := store.Read(context.Background(), remote.Courses(), &v); ok {
		t.Error("dry run wrote data")
	}
}
