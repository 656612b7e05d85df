// Package audio provides the µ-law frame primitives shared by the media
// endpoint and the voice activity detector: frame-size math, RMS energy,
// and the silence classifier that drives utterance segmentation.
//
// All audio in the gateway is G.711 µ-law (PCMU): 8 kHz, mono, one byte per
// sample. A 20 ms frame is therefore exactly [FrameSize] bytes.
package audio

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zaf/g711"
)

const (
	// SampleRate is the fixed sample rate of all gateway audio in Hz.
	SampleRate = 8000

	// FrameDuration is the wall-clock duration of one RTP frame.
	FrameDuration = 20 * time.Millisecond

	// FrameSize is the number of µ-law bytes in one frame
	// (SampleRate / 1000 · 20 ms).
	FrameSize = 160

	// SilenceByte is the µ-law encoding of a zero-amplitude sample. Runs of
	// SilenceByte are used for prefill padding before the first playback.
	SilenceByte = 0xFF

	// DefaultSilenceRMS is the default RMS amplitude below which a frame is
	// classified as silence.
	DefaultSilenceRMS = 30
)

// FrameSizeFor returns the number of µ-law bytes in a frame of the given
// duration at the given sample rate.
func FrameSizeFor(sampleRate int, frameDuration time.Duration) int {
	return sampleRate * int(frameDuration.Milliseconds()) / 1000
}

// RMS decodes a µ-law frame to 16-bit linear PCM and returns its
// root-mean-square amplitude. An empty frame has an RMS of zero.
func RMS(ulaw []byte) float64 {
	if len(ulaw) == 0 {
		return 0
	}
	pcm := g711.DecodeUlaw(ulaw)
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(pcm)/2))
}

// IsSilent reports whether the µ-law frame's RMS amplitude is below threshold.
func IsSilent(frame []byte, threshold float64) bool {
	return RMS(frame) < threshold
}

// Silence returns n frames of µ-law silence ([SilenceByte] · [FrameSize] · n).
func Silence(n int) []byte {
	buf := make([]byte, n*FrameSize)
	for i := range buf {
		buf[i] = SilenceByte
	}
	return buf
}
