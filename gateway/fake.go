package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"voicefit/store"
)

// Fake is an Extractor for tests and offline runs.
type Fake struct {
	Result Extraction
	Err    error
	Delay  time.Duration
}

func NewFake(result Extraction, err error) *Fake {
	return &Fake{Result: result, Err: err}
}

// NewFakeFromEnv builds a Fake from VOICEFIT_FAKE_EXTRACTOR: either a
// JSON extraction or any other non-empty string used as the
// transcription of a canned single-exercise workout.
func NewFakeFromEnv() *Fake {
	raw := os.Getenv("VOICEFIT_FAKE_EXTRACTOR")

	var result Extraction
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		result = Extraction{
			Exercises:        []store.Exercise{{Name: "Bench Press", Sets: store.IntPtr(3), Reps: store.IntPtr(10)}},
			RawTranscription: raw,
		}
	}
	return &Fake{Result: result, Delay: 300 * time.Millisecond}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Extract(ctx context.Context, _ []byte, _ string) (Extraction, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Extraction{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Extraction{}, fmt.Errorf("fake extractor error: %w", f.Err)
	}
	return f.Result, nil
}
