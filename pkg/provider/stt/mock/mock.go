// Package mock provides a test double for the stt.Recognizer interface.
//
// Use Recognizer in unit tests to feed controlled transcriptions without a
// live backend and to verify which utterances the orchestrator submitted.
// Configure the response fields before use; mutating them during a concurrent
// call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/provider/stt"
)

// Compile-time check that *Recognizer satisfies [stt.Recognizer].
var _ stt.Recognizer = (*Recognizer)(nil)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ulaw is the utterance passed to Recognize.
	Ulaw []byte
}

// Recognizer is a mock implementation of stt.Recognizer.
// Zero values cause Recognize to return ("", nil).
type Recognizer struct {
	mu sync.Mutex

	// Results is consumed one entry per call. When exhausted, Text and Err
	// are returned instead.
	Results []string

	// Text is returned once Results is exhausted.
	Text string

	// Err, if non-nil, is returned from every call (Results is not consumed).
	Err error

	// RecognizeFunc, if non-nil, overrides all other fields.
	RecognizeFunc func(ctx context.Context, ulaw []byte) (string, error)

	calls []RecognizeCall
}

// Recognize implements stt.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, ulaw []byte) (string, error) {
	r.mu.Lock()
	cp := make([]byte, len(ulaw))
	copy(cp, ulaw)
	r.calls = append(r.calls, RecognizeCall{Ulaw: cp})

	if r.RecognizeFunc != nil {
		fn := r.RecognizeFunc
		r.mu.Unlock()
		return fn(ctx, ulaw)
	}
	if r.Err != nil {
		err := r.Err
		r.mu.Unlock()
		return "", err
	}
	if len(r.Results) > 0 {
		text := r.Results[0]
		r.Results = r.Results[1:]
		r.mu.Unlock()
		return text, nil
	}
	text := r.Text
	r.mu.Unlock()
	return text, nil
}

// Calls returns a snapshot of all recorded invocations.
func (r *Recognizer) Calls() []RecognizeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecognizeCall, len(r.calls))
	copy(out, r.calls)
	return out
}
