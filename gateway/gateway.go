// Package gateway is the marshaling boundary to the remote
// speech-and-reasoning service: audio bytes in, structured workout out.
// No local NLP happens here.
package gateway

import (
	"context"
	"errors"

	"voicefit/store"
)

var (
	// ErrNoAPIKey is returned before any network I/O when the
	// credential is missing.
	ErrNoAPIKey = errors.New("set GEMINI_API_KEY environment variable")

	// ErrMissingTranscription marks a response without the mandatory
	// raw_transcription field, treated the same as a hard failure.
	ErrMissingTranscription = errors.New("response missing raw transcription")
)

// Extraction is the structured result of one inference call. Date and
// Notes are optional; RawTranscription is always present on success.
type Extraction struct {
	Date             string           `json:"date,omitempty"`
	Exercises        []store.Exercise `json:"exercises"`
	Notes            string           `json:"notes,omitempty"`
	RawTranscription string           `json:"raw_transcription"`
}

type Extractor interface {
	Name() string
	Extract(ctx context.Context, audio []byte, mimeType string) (Extraction, error)
}
