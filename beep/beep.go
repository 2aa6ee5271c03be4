// Package beep plays short audible cues so a workout can be dictated
// without looking at the screen: one tick when recording starts, one
// when it stops, a low double-beep on errors and a rising pair when a
// session is saved.
package beep

import "math"

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	// Saved cue: rising pair
	savedLowFreq  = 700
	savedHighFreq = 1050
	savedVolume   = 0.5
	savedDecay    = 45
)

// tone synthesizes a mono sine burst with an exponential decay envelope.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func join(parts ...[]int16) []int16 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]int16, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func gap(duration float64) []int16 {
	return make([]int16, int(sampleRate*duration))
}

func startCue() []int16 {
	return tone(startFreq, 0.2, startVolume, startDecay)
}

func endCue() []int16 {
	return tone(endFreq, 0.2, endVolume, endDecay)
}

func errorCue() []int16 {
	b := tone(errorFreq, 0.08, errorVolume, errorDecay)
	return join(b, gap(0.05), b)
}

func savedCue() []int16 {
	return join(
		tone(savedLowFreq, 0.09, savedVolume, savedDecay),
		gap(0.03),
		tone(savedHighFreq, 0.12, savedVolume, savedDecay),
	)
}
