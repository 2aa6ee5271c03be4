// Package capture owns the microphone while a workout is being dictated.
// A Controller runs at most one recording at a time: Start acquires the
// device and returns an event stream for the UI, Stop tears everything
// down deterministically and hands back the encoded audio.
package capture

import (
	"errors"
	"math"
	"sync"
	"time"

	"voicefit/audio"
	"voicefit/encoder"
	"voicefit/log"
)

var (
	ErrBusy         = errors.New("recording already in progress")
	ErrNotRecording = errors.New("no recording in progress")
)

// Event is what a recording reports while it runs. Concrete types are
// Level, Tick and Err.
type Event interface{ isEvent() }

// Level is the RMS of the latest chunk, normalized to [0, 1].
type Level struct{ RMS float64 }

// Tick fires once a second with the elapsed recording time. Voice is
// false when the last second was mostly dead air (true when voice
// detection is unavailable).
type Tick struct {
	Elapsed time.Duration
	Voice   bool
}

// Err reports a failure inside the encode pipeline. The recording keeps
// draining audio afterwards so Stop still returns cleanly.
type Err struct{ Err error }

func (Level) isEvent() {}
func (Tick) isEvent()  {}
func (Err) isEvent()   {}

// Result is the finished recording. SpeechDetected is false when the
// whole take went by without confirmed voice activity; it stays true
// when VAD is unavailable.
type Result struct {
	Audio          []byte
	MIMEType       string
	Duration       time.Duration
	DeviceName     string
	SpeechDetected bool
}

const tickInterval = time.Second

// chunkBacklog bounds how far the encoder may fall behind the device
// callback before chunks are dropped.
const chunkBacklog = 128

type Controller struct {
	ctx    audio.Context
	device *audio.DeviceInfo

	mu     sync.Mutex
	active *recording
}

func New(ctx audio.Context, device *audio.DeviceInfo) *Controller {
	return &Controller{ctx: ctx, device: device}
}

// SetDevice changes the capture device used by subsequent recordings.
// It does not affect a recording already in progress.
func (c *Controller) SetDevice(device *audio.DeviceInfo) {
	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

type recording struct {
	capture audio.CaptureDevice
	enc     *encoder.Flac
	vad     *vadDetector
	events  chan Event
	chunks  chan []byte
	encDone chan struct{}
	stopTic chan struct{}
	ticDone chan struct{}
	start   time.Time

	// sendMu orders late device callbacks against channel close.
	sendMu  sync.Mutex
	closed  bool
	dropped int

	errMu     sync.Mutex
	encodeErr error
}

// Start acquires the device and begins capturing. The returned channel
// carries Level, Tick and Err events until Stop closes it. A second
// Start while a recording is live returns ErrBusy.
func (c *Controller) Start() (<-chan Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrBusy
	}

	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}

	dev, err := c.ctx.NewCapture(c.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}

	vad, err := newVADDetector()
	if err != nil {
		// degrade to no voice detection rather than refuse to record
		log.Warnf("vad init: %v", err)
		vad = nil
	}

	r := &recording{
		capture: dev,
		enc:     enc,
		vad:     vad,
		events:  make(chan Event, 64),
		chunks:  make(chan []byte, chunkBacklog),
		encDone: make(chan struct{}),
		stopTic: make(chan struct{}),
		ticDone: make(chan struct{}),
		start:   time.Now(),
	}

	dev.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		pcm := make([]byte, len(data))
		copy(pcm, data)

		r.sendMu.Lock()
		defer r.sendMu.Unlock()
		if r.closed {
			return
		}
		select {
		case r.chunks <- pcm:
		default:
			r.dropped++
		}
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, err
	}

	go r.encodeLoop()
	go r.tickLoop()

	log.Infof("recording_start device=%s", dev.DeviceName())
	c.active = r
	return r.events, nil
}

// Stop ends the active recording, finalizes the FLAC stream and closes
// the event channel. Deferred encode errors surface here.
func (c *Controller) Stop() (Result, error) {
	c.mu.Lock()
	r := c.active
	c.active = nil
	c.mu.Unlock()

	if r == nil {
		return Result{}, ErrNotRecording
	}

	r.capture.Stop()
	r.capture.ClearCallback()
	name := r.capture.DeviceName()
	r.capture.Close()

	close(r.stopTic)
	<-r.ticDone

	r.sendMu.Lock()
	r.closed = true
	dropped := r.dropped
	r.sendMu.Unlock()

	close(r.chunks)
	<-r.encDone

	closeErr := r.enc.Close()
	close(r.events)

	if dropped > 0 {
		log.Warnf("recording dropped %d chunks (encoder backlog)", dropped)
	}

	speech := true
	if r.vad != nil {
		speech = r.vad.VoiceDetected()
	}

	res := Result{
		Audio:          r.enc.Bytes(),
		MIMEType:       encoder.MIMEType,
		Duration:       r.enc.Duration(),
		DeviceName:     name,
		SpeechDetected: speech,
	}
	log.Infof("recording_stop duration=%s bytes=%d", res.Duration, len(res.Audio))

	r.errMu.Lock()
	encodeErr := r.encodeErr
	r.errMu.Unlock()
	if encodeErr != nil {
		return res, encodeErr
	}
	return res, closeErr
}

func (r *recording) encodeLoop() {
	defer close(r.encDone)

	block := make([]int16, 0, encoder.BlockSize)
	for pcm := range r.chunks {
		if r.vad != nil {
			r.vad.Process(pcm)
		}
		samples := encoder.Samples(pcm)
		r.emit(Level{RMS: rms(samples)})

		block = append(block, samples...)
		for len(block) >= encoder.BlockSize {
			if !r.encodeBlock(block[:encoder.BlockSize]) {
				return
			}
			block = block[:copy(block, block[encoder.BlockSize:])]
		}
	}
	if len(block) > 0 {
		r.encodeBlock(block)
	}
}

func (r *recording) encodeBlock(block []int16) bool {
	if err := r.enc.EncodeBlock(block); err != nil {
		r.errMu.Lock()
		if r.encodeErr == nil {
			r.encodeErr = err
		}
		r.errMu.Unlock()
		log.Errorf("flac encode: %v", err)
		r.emit(Err{Err: err})
		// Keep draining chunks so the device callback never backs up.
		for range r.chunks {
		}
		return false
	}
	return true
}

func (r *recording) tickLoop() {
	defer close(r.ticDone)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopTic:
			return
		case <-ticker.C:
			voice := r.vad == nil || r.vad.SpeechSinceTick()
			r.emit(Tick{Elapsed: time.Since(r.start), Voice: voice})
		}
	}
}

// emit never blocks; a stalled consumer loses events, not audio.
func (r *recording) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sumSquares += n * n
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
