package main

import (
	"errors"
	"testing"

	"github.com/meltforce/fitcourse/internal/models"
)

func TestParseCounts(t *testing.T) {
	got, err := parseCounts([]string{"Push Ups=12", "Наклоны (10 повторений)=3.5", "done"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"Push Ups": 12, "Наклоны (10 повторений)": 3.5, models.CompletedKey: 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestParseCountsErrors(t *testing.T) {
	for _, in := range []string{"Squats", "=4", "Squats=many"} {
		_, err := parseCounts([]string{in})
		var uerr usageError
		if !errors.As(err, &uerr) {
			t.Errorf("parseCounts(%q) err = %v, want usage error", in, err)
		}
	}
}

func TestDifficulty(t *testing.T) {
	if got := difficulty(2); got != "**..." {
		t.Errorf("difficulty(2) = %q", got)
	}
}
