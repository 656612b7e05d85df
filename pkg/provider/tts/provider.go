// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A Synthesizer wraps a speech-synthesis service and delivers the complete
// audio buffer for a text fragment. Implementations may stream internally,
// but the contract is batch: the orchestrator synthesizes one sentence-sized
// chunk at a time, so buffers stay small and barge-in wastes little work.
//
// Implementations must be safe for concurrent use; multiple calls may
// synthesize in parallel.
package tts

import "context"

// Synthesizer is the abstraction over any text-to-speech backend.
type Synthesizer interface {
	// Synthesize renders text as 8 kHz mono µ-law audio. Latency is variable;
	// implementations must honour ctx cancellation promptly. A non-nil error
	// indicates a backend failure; callers skip the chunk and continue.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
