// Package stt defines the Recognizer interface for speech-to-text backends.
//
// A Recognizer wraps a transcription service (cloud or local) behind a single
// batch call: a complete utterance of 8 kHz mono µ-law audio in, recognized
// text out. The gateway's orchestrator invokes it once per detected utterance;
// latency directly delays the bot's reply, so implementations should avoid
// per-call connection setup where possible.
//
// Implementations must either be safe for concurrent use across calls or
// serialize internally.
package stt

import "context"

// Recognizer is the abstraction over any speech-to-text backend.
type Recognizer interface {
	// Recognize transcribes a complete utterance of 8 kHz mono µ-law audio.
	// It returns the recognized text, or an empty string with a nil error
	// when the backend produced no confident transcription. A non-nil error
	// indicates a backend failure; callers skip the utterance and continue.
	//
	// Implementations must honour ctx cancellation promptly.
	Recognize(ctx context.Context, ulaw []byte) (string, error)
}
