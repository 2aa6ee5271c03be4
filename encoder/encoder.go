// Package encoder compresses captured microphone audio to FLAC before it
// is shipped to the extraction API. All capture runs at 16kHz mono 16-bit.
package encoder

import "encoding/binary"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096

	// MIMEType is what the API is told the audio payload is.
	MIMEType = "audio/flac"
)

// Samples reinterprets little-endian 16-bit PCM bytes as samples. A
// trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
