// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer in unit tests to return controlled µ-law buffers without a
// live backend and to verify which chunks the orchestrator synthesized.
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// Compile-time check that *Synthesizer satisfies [tts.Synthesizer].
var _ tts.Synthesizer = (*Synthesizer)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the chunk passed to Synthesize.
	Text string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
// Zero values cause Synthesize to return (nil, nil).
type Synthesizer struct {
	mu sync.Mutex

	// Audio is the buffer returned from every call.
	Audio []byte

	// Err, if non-nil, is returned from every call.
	Err error

	// SynthesizeFunc, if non-nil, overrides all other fields.
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	calls []SynthesizeCall
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SynthesizeCall{Text: text})
	fn := s.SynthesizeFunc
	audio, err := s.Audio, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Calls returns a snapshot of all recorded invocations.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.calls))
	copy(out, s.calls)
	return out
}
