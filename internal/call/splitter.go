package call

import (
	"strings"
	"unicode"
)

// SplitSentences splits an LLM reply into speakable sentence-sized chunks.
// Smaller chunks let playback start sooner and make a barge-in cancel less
// synthesized audio.
//
// A split point is a '.', '?', '!', '\n', or non-breaking space immediately
// followed by whitespace, with two abbreviation guards on '.': no split after
// a pair of dotted initials ("J. R."-style, matched as letter-dot-letter-dot)
// and no split after a capital-lowercase-dot abbreviation ("Mr.", "Dr.").
// Chunks are whitespace-trimmed; empty chunks are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var chunks []string
	start := 0

	for i := 0; i < len(runes)-1; i++ {
		if !isSplitRune(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes, i) {
			continue
		}
		chunks = appendChunk(chunks, string(runes[start:i+1]))
		start = i + 1
	}
	chunks = appendChunk(chunks, string(runes[start:]))
	return chunks
}

// isSplitRune reports whether r terminates a speakable chunk.
func isSplitRune(r rune) bool {
	switch r {
	case '.', '?', '!', '\n', '\u00A0':
		return true
	}
	return false
}

// isAbbreviation reports whether the '.' at index i ends an abbreviation
// rather than a sentence. Two patterns guard against splitting:
//
//	letter '.' letter '.'  — dotted initials such as "J. R." or "U.S."
//	Upper lower '.'        — title abbreviations such as "Mr." or "Dr."
func isAbbreviation(runes []rune, i int) bool {
	if i >= 3 &&
		unicode.IsLetter(runes[i-3]) && runes[i-2] == '.' && unicode.IsLetter(runes[i-1]) {
		return true
	}
	if i >= 2 &&
		unicode.IsUpper(runes[i-2]) && unicode.IsLower(runes[i-1]) {
		return true
	}
	return false
}

// appendChunk trims s and appends it to chunks unless it is empty.
func appendChunk(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
