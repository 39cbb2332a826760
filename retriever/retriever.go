package retriever

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gamma-omg/rag-chat/docstore"
)

const DefaultResults = 5

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]docstore.Hit, error)
}

// Result is a ranked chunk. Relevance is 1 - Distance and is not clamped, so
// it goes negative for chunks pointing away from the query.
type Result struct {
	Text      string
	Source    string
	ChunkID   int
	Distance  float32
	Relevance float32
}

type Retriever struct {
	embedder Embedder
	index    Searcher
}

func New(embedder Embedder, index Searcher) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// Search returns up to n chunks closest to query, closest first.
func (r *Retriever) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if n <= 0 {
		n = DefaultResults
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("failed to embed query: no embedding returned")
	}

	hits, err := r.index.Search(ctx, vectors[0], n)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	slices.SortStableFunc(hits, func(a, b docstore.Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	res := make([]Result, 0, len(hits))
	for _, h := range hits {
		res = append(res, Result{
			Text:      h.Text,
			Source:    h.Metadata.Source,
			ChunkID:   h.Metadata.ChunkID,
			Distance:  h.Distance,
			Relevance: 1 - h.Distance,
		})
	}

	return res, nil
}

// Retrieve builds the context passed to the generator: every result labeled
// with its relevance, closest first, separated by a blank line.
func (r *Retriever) Retrieve(ctx context.Context, query string, n int) (string, error) {
	res, err := r.Search(ctx, query, n)
	if err != nil {
		return "", err
	}

	return Format(res), nil
}

func Format(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Relevance: %.2f] %s", r.Relevance, r.Text))
	}

	return strings.Join(parts, "\n\n")
}
