package call_test

import (
	"reflect"
	"testing"

	"github.com/voxgate/voxgate/internal/call"
)

func TestSplitSentences(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "two sentences",
			in:   "Hello there. How are you today?",
			want: []string{"Hello there.", "How are you today?"},
		},
		{
			name: "question and exclamation",
			in:   "Really? That is great! Goodbye.",
			want: []string{"Really?", "That is great!", "Goodbye."},
		},
		{
			name: "newline splits",
			in:   "First line\n Second line",
			want: []string{"First line", "Second line"},
		},
		{
			name: "no terminator",
			in:   "just a fragment",
			want: []string{"just a fragment"},
		},
		{
			name: "title abbreviation kept together",
			in:   "Mr. Smith called. He left a message.",
			want: []string{"Mr. Smith called.", "He left a message."},
		},
		{
			name: "dotted initials kept together",
			in:   "The U.S. office is closed. Try tomorrow.",
			want: []string{"The U.S. office is closed.", "Try tomorrow."},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "whitespace only",
			in:   "   \n  ",
			want: nil,
		},
		{
			name: "trailing whitespace trimmed",
			in:   "One.   Two.   ",
			want: []string{"One.", "Two."},
		},
		{
			name: "period without following space does not split",
			in:   "Version 1.5 is out. Update now.",
			want: []string{"Version 1.5 is out.", "Update now."},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := call.SplitSentences(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitSentences(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}
