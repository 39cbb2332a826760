package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tiktoken_RoundTrip(t *testing.T) {
	tok, err := NewTiktoken("")
	require.NoError(t, err)

	text := "congress shall make law respecting establishment religion prohibiting free exercise thereof"
	tokens := tok.Encode(text)

	assert.NotEmpty(t, tokens)
	assert.Equal(t, text, tok.Decode(tokens))
}

func Test_Tiktoken_ChunkBound(t *testing.T) {
	tok, err := NewTiktoken(DefaultEncoding)
	require.NoError(t, err)

	text := strings.Repeat("people united states order form perfect union ", 200)
	text = strings.TrimSpace(text)

	chunks := New(tok, 50).Chunk(text)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Tokens, 50)
	}
	assert.Equal(t, text, strings.Join(Texts(chunks), ""))
}
