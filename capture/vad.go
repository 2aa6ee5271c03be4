package capture

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"voicefit/encoder"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadDebounce   = 3 // consecutive speech frames to confirm voice

	// at least this share of a tick window must be speech to count as
	// "speaking"
	speechThreshold = 0.10
)

// vadDetector runs WebRTC voice activity detection over the capture
// stream so the UI can tell dictation from dead air.
type vadDetector struct {
	vad *webrtcvad.VAD

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func newVADDetector() (*vadDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadDetector{vad: v}, nil
}

func (p *vadDetector) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= vadFrameBytes {
		frame := p.buf[:vadFrameBytes]
		p.buf = p.buf[vadFrameBytes:]

		active, err := p.vad.Process(encoder.SampleRate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			if p.speechRun >= vadDebounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

// VoiceDetected reports whether any confirmed speech has been seen over
// the whole recording.
func (p *vadDetector) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

// SpeechSinceTick reports whether the frames since the previous call
// were mostly speech. Returns true for an empty window so a stalled
// stream never warns.
func (p *vadDetector) SpeechSinceTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return true
	}
	return float64(s)/float64(t) >= speechThreshold
}
