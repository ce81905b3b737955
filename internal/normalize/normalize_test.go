package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "strips markup tags",
			input: "<p>hello <b>world</b></p>",
			want:  "hello world",
		},
		{
			name:  "collapses whitespace runs",
			input: "hello   world\n\nagain\ttabs",
			want:  "hello world again tabs",
		},
		{
			name:  "trims leading and trailing whitespace",
			input: "  hello world  \n",
			want:  "hello world",
		},
		{
			name:  "unterminated tag at end",
			input: "hello <br",
			want:  "hello",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only markup",
			input: "<div><span></span></div>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"<article><p>Breaking:  markets \n rally</p></article>",
		"   plain\ttext   ",
		"",
		"already clean",
	}

	for _, input := range inputs {
		once := Clean(input)
		assert.Equal(t, once, Clean(once), "Clean must be idempotent for %q", input)
	}
}
