package normalizer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Normalize(t *testing.T) {
	var cases = []struct {
		input  string
		output string
	}{
		{input: "The Quick brown fox!", output: "quick brown fox"},
		{input: "Article 5, section 12: Powers of Congress", output: "article section powers congress"},
		{input: "it's   don't\nwon't", output: "dont wont"},
		{input: "The and of 123 !!!", output: ""},
		{input: "", output: ""},
		{input: "Liberty\tand\tJustice", output: "liberty justice"},
		{input: "Liberty\u00a0Justice", output: "liberty justice"},
		{input: "Liberty\u2003Justice", output: "liberty justice"},
		{input: "Liberty\vJustice", output: "liberty justice"},
		{input: "Liberty\u2028Justice\x1fUnion", output: "liberty justice union"},
	}

	n := New()
	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			assert.Equal(t, c.output, n.Normalize(c.input))
		})
	}
}

func Test_Normalize_CustomStopWords(t *testing.T) {
	n := New("Fox", "dog")

	assert.Equal(t, "the quick brown jumps", n.Normalize("The quick brown fox jumps dog"))
	assert.True(t, n.IsStopWord("FOX"))
	assert.False(t, n.IsStopWord("the"))
}

func Test_Normalize_Deterministic(t *testing.T) {
	n := New()
	text := "We the People of the United States, in Order to form a more perfect Union"

	assert.Equal(t, n.Normalize(text), n.Normalize(text))
	assert.Equal(t, "people united states order form perfect union", n.Normalize(text))
}
