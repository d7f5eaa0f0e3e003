package models

import "math"

// CompletedKey is the single counter used by workouts without exercises.
// Its value is 0 or 100.
const CompletedKey = "completed"

// ProgressRecord maps exercise names to achieved repetition counts for one
// (user, workout) pair. A nil record means no progress.
type ProgressRecord map[string]int

// Count returns the achieved count for name, zero when absent.
func (r ProgressRecord) Count(name string) int {
	return r[name]
}

// RecordFromFloats converts a decoded remote node into a ProgressRecord,
// rounding fractional counts. Non-finite values are dropped.
func RecordFromFloats(raw map[string]float64) ProgressRecord {
	rec := make(ProgressRecord, len(raw))
	for k, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		rec[k] = int(math.Round(v))
	}
	return rec
}
