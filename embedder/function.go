package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
)

// FunctionProvider adapts a chroma-go embedding function to Provider.
type FunctionProvider struct {
	ef embeddings.EmbeddingFunction
}

func NewFunctionProvider(ef embeddings.EmbeddingFunction) *FunctionProvider {
	return &FunctionProvider{ef: ef}
}

func (p *FunctionProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embs, err := p.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	res := make([][]float32, 0, len(embs))
	for _, e := range embs {
		res = append(res, e.ContentAsFloat32())
	}

	return res, nil
}

func (p *FunctionProvider) EmbeddingFunction() embeddings.EmbeddingFunction {
	return p.ef
}

func NewOpenAIProvider(apiKey, model string) (*FunctionProvider, error) {
	if apiKey == "" {
		return nil, errors.New("missing OpenAI api key")
	}

	ef, err := openai.NewOpenAIEmbeddingFunction(apiKey, openai.WithModel(openai.EmbeddingModel(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
	}

	return NewFunctionProvider(ef), nil
}

func NewGeminiProvider(apiKey, model string) (*FunctionProvider, error) {
	if apiKey == "" {
		return nil, errors.New("missing Gemini api key")
	}

	ef, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithAPIKey(apiKey),
		gemini.WithDefaultModel(embeddings.EmbeddingModel(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	return NewFunctionProvider(ef), nil
}
