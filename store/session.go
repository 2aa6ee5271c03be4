package store

// Exercise is one extracted exercise entry. Nil numeric fields mean
// "not reported", never zero.
type Exercise struct {
	Name        string   `json:"name"`
	Sets        *int     `json:"sets,omitempty"`
	Reps        *int     `json:"reps,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	DurationMin *float64 `json:"duration_minutes,omitempty"`
}

// WorkoutSession is one recorded and reviewed workout. Immutable once
// saved; the store only adds and deletes whole sessions.
type WorkoutSession struct {
	ID               string     `json:"id"`
	Date             string     `json:"date"` // YYYY-MM-DD
	Exercises        []Exercise `json:"exercises"`
	RawTranscription string     `json:"raw_transcription"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        int64      `json:"createdAt"` // epoch milliseconds
}

// Draft is a session pending user confirmation, before the store has
// assigned an identifier and creation timestamp.
type Draft struct {
	Date             string
	Exercises        []Exercise
	RawTranscription string
	Notes            string
}

func IntPtr(v int) *int             { return &v }
func Float64Ptr(v float64) *float64 { return &v }
