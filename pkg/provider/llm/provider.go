// Package llm defines the LanguageModel interface for reply generation.
//
// A LanguageModel turns a caller's recognized utterance into the bot's textual
// reply. Generation may block for seconds; the orchestrator wraps calls with
// its backend timeout and treats failures as a skipped turn, so
// implementations need not retry internally.
//
// Implementations must be safe for concurrent use across calls.
package llm

import "context"

// LanguageModel is the abstraction over any reply-generation backend.
type LanguageModel interface {
	// Generate returns a plain-text reply to prompt. A non-nil error
	// indicates a backend failure; callers skip the reply and continue.
	// Implementations must honour ctx cancellation promptly.
	Generate(ctx context.Context, prompt string) (string, error)
}
