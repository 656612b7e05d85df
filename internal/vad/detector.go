// Package vad implements the frame-level voice activity detector that
// segments an inbound µ-law stream into utterances.
//
// The detector is a three-state machine (Idle → Capturing → Flushing) driven
// one 20 ms frame at a time. Frames are appended to an internal buffer and
// classified as speech or silence by RMS energy. A run of consecutive speech
// frames signals that the caller is talking (the barge-in hook); a run of
// consecutive silence frames terminates the utterance, which is emitted with
// its trailing silence trimmed.
//
// Feed is synchronous and must not block: it is called from the media ingress
// loop for every received frame. A Detector is owned by a single call and is
// not safe for concurrent use.
package vad

import (
	"github.com/voxgate/voxgate/pkg/audio"
)

// Default thresholds in frames of 20 ms at 8 kHz.
const (
	// DefaultSpeechFrames is the number of consecutive speech frames that
	// count as "the caller is talking" and fire the barge-in hook.
	DefaultSpeechFrames = 10

	// DefaultSilenceFrames is the number of consecutive silence frames that
	// terminate an utterance.
	DefaultSilenceFrames = 20

	// DefaultSilenceRMS is the RMS amplitude below which a frame is silence.
	DefaultSilenceRMS = audio.DefaultSilenceRMS
)

// State is the detector's segmentation state.
type State int

const (
	// StateIdle means no speech has been observed since the last emit.
	StateIdle State = iota

	// StateCapturing means the buffer holds an in-progress utterance.
	StateCapturing

	// StateFlushing is the transient state entered while an utterance is
	// being emitted; the detector returns to StateIdle before Feed returns.
	StateFlushing
)

// Config holds the detector thresholds and side-effect hooks.
// Zero-value thresholds fall back to the package defaults.
type Config struct {
	// SpeechFrames is the consecutive-speech-frame count that fires OnBargeIn.
	// The hook fires exactly once per run, on the frame that reaches the
	// threshold, not on every frame beyond it.
	SpeechFrames int

	// SilenceFrames is the consecutive-silence-frame count that terminates
	// an utterance.
	SilenceFrames int

	// SilenceRMS is the RMS amplitude below which a frame is silence.
	SilenceRMS float64

	// OnBargeIn is invoked when SpeechFrames consecutive speech frames have
	// been observed. May be nil.
	OnBargeIn func()

	// OnUtterance is invoked with a complete utterance: the buffered bytes
	// with all trailing silence-classified frames removed. The slice is owned
	// by the callee. May be nil, in which case utterances are discarded.
	OnUtterance func(ulaw []byte)
}

// Detector segments a µ-law frame stream into utterances.
type Detector struct {
	cfg Config

	state        State
	speechCount  int
	silenceCount int
	buf          []byte
}

// New creates a Detector with the given configuration, applying package
// defaults for any zero-value threshold.
func New(cfg Config) *Detector {
	if cfg.SpeechFrames <= 0 {
		cfg.SpeechFrames = DefaultSpeechFrames
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = DefaultSilenceFrames
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = DefaultSilenceRMS
	}
	return &Detector{cfg: cfg}
}

// State returns the current segmentation state.
func (d *Detector) State() State {
	return d.state
}

// Feed processes one µ-law frame. It appends the frame to the utterance
// buffer, updates the speech/silence run counters, and invokes the configured
// hooks when a threshold is crossed.
func (d *Detector) Feed(frame []byte) {
	d.buf = append(d.buf, frame...)

	if audio.IsSilent(frame, d.cfg.SilenceRMS) {
		d.silenceCount++
		d.speechCount = 0
	} else {
		d.speechCount++
		d.silenceCount = 0
		d.state = StateCapturing
	}

	// Edge trigger: fire exactly when the run reaches the threshold.
	if d.speechCount == d.cfg.SpeechFrames && d.cfg.OnBargeIn != nil {
		d.cfg.OnBargeIn()
	}

	if d.silenceCount >= d.cfg.SilenceFrames {
		d.flush()
	}
}

// Reset discards the buffer and counters and returns the detector to
// StateIdle. Use when the call's audio stream is interrupted.
func (d *Detector) Reset() {
	d.buf = nil
	d.speechCount = 0
	d.silenceCount = 0
	d.state = StateIdle
}

// flush trims the trailing silence run from the buffer and emits the
// remainder as an utterance. A trim that would leave less than one full
// frame empties the buffer and emits nothing.
func (d *Detector) flush() {
	d.state = StateFlushing

	trim := d.silenceCount * audio.FrameSize
	if trim > len(d.buf) {
		trim = len(d.buf)
	}
	utterance := d.buf[:len(d.buf)-trim]

	if len(utterance) >= audio.FrameSize {
		if d.cfg.OnUtterance != nil {
			emit := make([]byte, len(utterance))
			copy(emit, utterance)
			d.cfg.OnUtterance(emit)
		}
	}

	d.buf = d.buf[:0]
	d.speechCount = 0
	d.silenceCount = 0
	d.state = StateIdle
}
