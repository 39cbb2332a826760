package chunker

const DefaultMaxTokens = 1000

// Tokenizer must share its vocabulary with the embedding model so chunk
// sizes match what the provider counts.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type Chunk struct {
	ID     int
	Text   string
	Tokens int
}

type Chunker struct {
	tokenizer Tokenizer
	maxTokens int
}

func New(tokenizer Tokenizer, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Chunker{
		tokenizer: tokenizer,
		maxTokens: maxTokens,
	}
}

func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

// Chunk splits text into consecutive, non-overlapping chunks of at most
// MaxTokens tokens. Only the last chunk may be shorter.
func (c *Chunker) Chunk(text string) []Chunk {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return []Chunk{}
	}

	res := make([]Chunk, 0, len(tokens)/c.maxTokens+1)
	for pos := 0; pos < len(tokens); pos += c.maxTokens {
		end := min(pos+c.maxTokens, len(tokens))
		res = append(res, Chunk{
			ID:     len(res),
			Text:   c.tokenizer.Decode(tokens[pos:end]),
			Tokens: end - pos,
		})
	}

	return res
}

// Texts returns chunk texts in chunk order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	return texts
}
