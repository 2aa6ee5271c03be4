package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewFakeContextStripsWAVHeader(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := append(make([]byte, WAVHeaderSize), payload...)

	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatalf("NewFakeContext: %v", err)
	}
	if !bytes.Equal(ctx.pcm, payload) {
		t.Errorf("pcm = %v, want header stripped to %v", ctx.pcm, payload)
	}
}

func TestNewFakeContextMissingFile(t *testing.T) {
	if _, err := NewFakeContext(filepath.Join(t.TempDir(), "nope.wav"), false); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFakeCaptureRealtimeDeliversAllAudio(t *testing.T) {
	pcm := make([]byte, 4096) // two frames worth
	for i := range pcm {
		pcm[i] = byte(i)
	}
	ctx := NewFakeContextPCM(pcm, true)

	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: fakeSampleRate, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	fake := dev.(*FakeCapture)

	var mu sync.Mutex
	var got []byte
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		got = append(got, data...)
		mu.Unlock()
	})

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-fake.AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("AudioDone never closed")
	}
	dev.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) < len(pcm) || !bytes.Equal(got[:len(pcm)], pcm) {
		t.Errorf("delivered %d bytes, want the full %d-byte buffer first", len(got), len(pcm))
	}
}
