package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func candidateBody(t *testing.T, extraction string) []byte {
	t.Helper()
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": extraction}},
			},
		}},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGemini("test-key", "gemini-2.5-flash")
	g.baseURL = srv.URL
	g.client = NewTracedClient(srv.URL)
	return g
}

func TestWarmOpensConnection(t *testing.T) {
	hits := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Method
	}))
	t.Cleanup(srv.Close)

	NewTracedClient(srv.URL).Warm()

	select {
	case method := <-hits:
		if method != http.MethodHead {
			t.Errorf("warm request method = %q, want HEAD", method)
		}
	default:
		t.Fatal("Warm did not reach the server")
	}
}

func TestExtractNoAPIKey(t *testing.T) {
	g := NewGemini("", "")
	_, err := g.Extract(context.Background(), []byte("audio"), "audio/flac")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestExtractRequestShape(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03}
	var captured generateRequest

	g := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(candidateBody(t, `{"exercises":[],"raw_transcription":"hi"}`))
	})

	if _, err := g.Extract(context.Background(), audio, "audio/flac"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents shape: %+v", captured.Contents)
	}
	inline := captured.Contents[0].Parts[0].InlineData
	if inline == nil {
		t.Fatal("first part should carry inline audio")
	}
	if inline.MimeType != "audio/flac" {
		t.Errorf("mime type = %q", inline.MimeType)
	}
	if inline.Data != base64.StdEncoding.EncodeToString(audio) {
		t.Error("audio not base64-encoded verbatim")
	}
	if captured.Contents[0].Parts[1].Text == "" {
		t.Error("second part should carry task instructions")
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.ResponseMimeType != "application/json" {
		t.Error("generation config should request JSON output")
	}
	sch := captured.GenerationConfig.ResponseSchema
	if sch == nil {
		t.Fatal("response schema missing")
	}
	for _, req := range []string{"exercises", "raw_transcription"} {
		found := false
		for _, r := range sch.Required {
			if r == req {
				found = true
			}
		}
		if !found {
			t.Errorf("schema should require %q", req)
		}
	}
}

func TestExtractDecodesResult(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(candidateBody(t, `{
			"date": "2026-08-20",
			"exercises": [{"name":"Bench Press","sets":5,"reps":10,"weight":80}],
			"notes": "felt heavy",
			"raw_transcription": "five sets of ten bench at eighty"
		}`))
	})

	got, err := g.Extract(context.Background(), []byte("audio"), "audio/flac")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Date != "2026-08-20" {
		t.Errorf("Date = %q", got.Date)
	}
	if len(got.Exercises) != 1 || got.Exercises[0].Name != "Bench Press" {
		t.Errorf("Exercises = %+v", got.Exercises)
	}
	if got.Exercises[0].Sets == nil || *got.Exercises[0].Sets != 5 {
		t.Error("Sets should decode to 5")
	}
	if got.Exercises[0].DurationMin != nil {
		t.Error("absent duration should stay nil, not zero")
	}
	if got.RawTranscription != "five sets of ten bench at eighty" {
		t.Errorf("RawTranscription = %q", got.RawTranscription)
	}
}

func TestExtractMissingTranscription(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(candidateBody(t, `{"exercises":[{"name":"Squats"}]}`))
	})

	_, err := g.Extract(context.Background(), []byte("audio"), "audio/flac")
	if !errors.Is(err, ErrMissingTranscription) {
		t.Fatalf("err = %v, want ErrMissingTranscription", err)
	}
}

func TestExtractEmptyTranscriptionAllowed(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(candidateBody(t, `{"exercises":[],"raw_transcription":""}`))
	})

	got, err := g.Extract(context.Background(), []byte("audio"), "audio/flac")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.RawTranscription != "" {
		t.Errorf("RawTranscription = %q, want empty", got.RawTranscription)
	}
}

func TestExtractServerError(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, err := g.Extract(context.Background(), []byte("audio"), "audio/flac"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestExtractMalformedCandidates(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	if _, err := g.Extract(context.Background(), []byte("audio"), "audio/flac"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestExtractUnparseableExtraction(t *testing.T) {
	g := testGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(candidateBody(t, `this is not json`))
	})

	if _, err := g.Extract(context.Background(), []byte("audio"), "audio/flac"); err == nil {
		t.Fatal("expected error for unparseable extraction")
	}
}
