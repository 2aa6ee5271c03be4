package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"voicefit/log"
	"voicefit/store"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"

	// The remote call has no cancellation path once the workflow is in
	// Processing, so it must not hang forever.
	requestTimeout = 60 * time.Second
)

// Gemini extracts structured workouts from audio via the generateContent
// API. The response schema and task instructions do the heavy lifting;
// this type only encodes the request and validates the reply.
type Gemini struct {
	client  *TracedClient
	baseURL string
	model   string
	apiKey  string
	lang    string
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	g := &Gemini{
		client:  NewTracedClient(defaultBaseURL),
		baseURL: defaultBaseURL,
		model:   model,
		apiKey:  apiKey,
	}
	// Pre-open the connection so the TLS handshake is not part of the
	// user-visible processing time.
	go g.client.Warm()
	return g
}

// New builds the default extractor from the environment. The key is
// checked again at call time; here it only selects the implementation.
func New(model, lang string) Extractor {
	if os.Getenv("VOICEFIT_FAKE_EXTRACTOR") != "" {
		return NewFakeFromEnv()
	}
	g := NewGemini(os.Getenv("GEMINI_API_KEY"), model)
	g.SetLanguage(lang)
	return g
}

func (g *Gemini) Name() string { return "gemini" }

// SetLanguage adds a language hint to the instructions. Empty means
// auto-detect, which is the default.
func (g *Gemini) SetLanguage(lang string) { g.lang = lang }

// Gemini structured-output schema types.
type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
	Items       *schema           `json:"items,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

func extractionSchema() schema {
	return schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"date": {
				Type:        "STRING",
				Description: "The date of the workout in YYYY-MM-DD format, only if the speaker mentions one.",
			},
			"exercises": {
				Type: "ARRAY",
				Items: &schema{
					Type: "OBJECT",
					Properties: map[string]schema{
						"name":             {Type: "STRING", Description: "Standardized name of the exercise in English (e.g., 'Bench Press'). Translate if necessary."},
						"sets":             {Type: "NUMBER", Description: "Number of sets performed"},
						"reps":             {Type: "NUMBER", Description: "Number of repetitions per set"},
						"weight":           {Type: "NUMBER", Description: "Weight used in kg if mentioned"},
						"duration_minutes": {Type: "NUMBER", Description: "Duration in minutes for cardio/timed exercises"},
					},
					Required: []string{"name"},
				},
			},
			"notes":             {Type: "STRING", Description: "Any additional context regarding intensity, feelings, or specific details."},
			"raw_transcription": {Type: "STRING", Description: "Verbatim transcription of the audio in the spoken language."},
		},
		Required: []string{"exercises", "raw_transcription"},
	}
}

func (g *Gemini) instructions() string {
	text := `Analyze the audio recording of a workout session.

Steps:
1. Transcribe the spoken audio exactly as it is heard in the 'raw_transcription' field. Support English, Spanish, and other common languages.
2. Extract the exercises, sets, reps, weights, and durations into the 'exercises' array.
3. Normalize exercise names to English. For example, if the user says "Sentadillas", map it to "Squats". If "Press de Banca", map to "Bench Press".
4. Only fill the 'date' field if the speaker explicitly mentions a date.

Be accurate with numbers. Handle casual speech like "couple of sets of 10" (implies 2 sets).`
	if g.lang != "" {
		text += fmt.Sprintf("\n\nThe speaker's primary language is %q.", g.lang)
	}
	return text
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// wireExtraction distinguishes an absent raw_transcription from an
// empty one; only absence violates the contract.
type wireExtraction struct {
	Date             string           `json:"date"`
	Exercises        []store.Exercise `json:"exercises"`
	Notes            string           `json:"notes"`
	RawTranscription *string          `json:"raw_transcription"`
}

func (g *Gemini) Extract(ctx context.Context, audio []byte, mimeType string) (Extraction, error) {
	if g.apiKey == "" {
		return Extraction{}, ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	sch := extractionSchema()
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
				{Text: g.instructions()},
			},
		}},
		SystemInstruction: &content{Parts: []part{{
			Text: "You are an expert fitness coach and linguist capable of understanding workout logs in multiple languages, especially Spanish and English.",
		}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   &sch,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Extraction{}, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Extraction{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Extraction{}, fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp generateResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return Extraction{}, fmt.Errorf("gemini response parse error: %w", err)
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return Extraction{}, fmt.Errorf("gemini returned no candidates")
	}

	var wire wireExtraction
	if err := json.Unmarshal([]byte(gResp.Candidates[0].Content.Parts[0].Text), &wire); err != nil {
		return Extraction{}, fmt.Errorf("extraction parse error: %w", err)
	}
	if wire.RawTranscription == nil {
		return Extraction{}, ErrMissingTranscription
	}

	result := Extraction{
		Date:             wire.Date,
		Exercises:        wire.Exercises,
		Notes:            wire.Notes,
		RawTranscription: *wire.RawTranscription,
	}

	m := resp.Metrics
	log.Extraction(log.ExtractionMetrics{
		CompressedSizeKB: float64(len(audio)) / 1024,
		DNSTimeMs:        float64(m.DNS.Milliseconds()),
		TLSTimeMs:        float64(m.TLS.Milliseconds()),
		TTFBMs:           float64(m.TTFB.Milliseconds()),
		TotalTimeMs:      float64(m.Total.Milliseconds()),
	}, g.model, len(result.Exercises), m.ConnReused)

	return result, nil
}
