// Package analytics derives display aggregates from the session list.
// Everything here is a pure function of its input; nothing is cached or
// persisted.
package analytics

import (
	"sort"
	"strings"
	"time"

	"voicefit/store"
)

const dateLayout = "2006-01-02"

type VolumePoint struct {
	Date   string
	Volume int
}

type ExerciseCount struct {
	Name  string
	Count int
}

// SessionVolume approximates total repetitions for one session:
// sum over exercises of (sets or 1) * (reps or 0).
func SessionVolume(sess store.WorkoutSession) int {
	total := 0
	for _, ex := range sess.Exercises {
		sets := 1
		if ex.Sets != nil {
			sets = *ex.Sets
		}
		reps := 0
		if ex.Reps != nil {
			reps = *ex.Reps
		}
		total += sets * reps
	}
	return total
}

// VolumeTrend returns per-session volumes sorted by date ascending,
// keeping only the 7 most recent sessions.
func VolumeTrend(sessions []store.WorkoutSession) []VolumePoint {
	sorted := make([]store.WorkoutSession, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	if len(sorted) > 7 {
		sorted = sorted[len(sorted)-7:]
	}

	points := make([]VolumePoint, len(sorted))
	for i, sess := range sorted {
		points[i] = VolumePoint{Date: sess.Date, Volume: SessionVolume(sess)}
	}
	return points
}

// TopExercises counts exercise names case-insensitively across all
// sessions and returns the n most frequent, descending. Ties break by
// name so the result is deterministic.
func TopExercises(sessions []store.WorkoutSession, n int) []ExerciseCount {
	counts := map[string]int{}
	for _, sess := range sessions {
		for _, ex := range sess.Exercises {
			counts[strings.ToLower(ex.Name)]++
		}
	}

	out := make([]ExerciseCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, ExerciseCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentCount returns how many sessions fall within the trailing 7 days
// from now. Sessions with unparseable dates are skipped.
func RecentCount(sessions []store.WorkoutSession, now time.Time) int {
	cutoff := now.AddDate(0, 0, -7)
	count := 0
	for _, sess := range sessions {
		d, err := time.Parse(dateLayout, sess.Date)
		if err != nil {
			continue
		}
		if d.After(cutoff) {
			count++
		}
	}
	return count
}
