package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voicefit/store"
)

func TestSessionVolumeDefaults(t *testing.T) {
	withSets := store.WorkoutSession{
		Exercises: []store.Exercise{{Name: "Squats", Sets: store.IntPtr(3), Reps: store.IntPtr(10)}},
	}
	repsOnly := store.WorkoutSession{
		Exercises: []store.Exercise{{Name: "Pull Ups", Reps: store.IntPtr(5)}},
	}
	setsOnly := store.WorkoutSession{
		Exercises: []store.Exercise{{Name: "Plank", Sets: store.IntPtr(4)}},
	}

	assert.Equal(t, 30, SessionVolume(withSets))  // 3 * 10
	assert.Equal(t, 5, SessionVolume(repsOnly))   // missing sets defaults to 1
	assert.Equal(t, 0, SessionVolume(setsOnly))   // missing reps defaults to 0
	assert.Equal(t, 0, SessionVolume(store.WorkoutSession{}))
}

func TestVolumeTrendSortsAndLimits(t *testing.T) {
	var sessions []store.WorkoutSession
	for i := 1; i <= 9; i++ {
		sessions = append(sessions, store.WorkoutSession{
			Date:      fmt.Sprintf("2026-08-%02d", i),
			CreatedAt: int64(i),
			Exercises: []store.Exercise{{Name: "Rows", Sets: store.IntPtr(1), Reps: store.IntPtr(i)}},
		})
	}
	// Shuffle in a fixed unsorted order.
	sessions[0], sessions[8] = sessions[8], sessions[0]

	trend := VolumeTrend(sessions)
	assert.Len(t, trend, 7)
	assert.Equal(t, "2026-08-03", trend[0].Date)
	assert.Equal(t, "2026-08-09", trend[6].Date)
	for i := 1; i < len(trend); i++ {
		assert.Less(t, trend[i-1].Date, trend[i].Date)
	}
	assert.Equal(t, 3, trend[0].Volume)
	assert.Equal(t, 9, trend[6].Volume)
}

func TestTopExercisesCaseInsensitive(t *testing.T) {
	sessions := []store.WorkoutSession{
		{Exercises: []store.Exercise{{Name: "Squats"}, {Name: "Bench Press"}}},
		{Exercises: []store.Exercise{{Name: "squats"}}},
	}

	top := TopExercises(sessions, 5)
	assert.Equal(t, []ExerciseCount{
		{Name: "squats", Count: 2},
		{Name: "bench press", Count: 1},
	}, top)
}

func TestTopExercisesLimit(t *testing.T) {
	var sessions []store.WorkoutSession
	for i := 0; i < 8; i++ {
		sessions = append(sessions, store.WorkoutSession{
			Exercises: []store.Exercise{{Name: fmt.Sprintf("exercise-%d", i)}},
		})
	}

	top := TopExercises(sessions, 5)
	assert.Len(t, top, 5)
}

func TestRecentCount(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	sessions := []store.WorkoutSession{
		{Date: "2026-08-28"}, // in window
		{Date: "2026-08-23"}, // in window
		{Date: "2026-08-22"}, // exactly 7 days back, excluded
		{Date: "2026-07-01"}, // out of window
		{Date: "not-a-date"}, // skipped
	}

	assert.Equal(t, 2, RecentCount(sessions, now))
}
