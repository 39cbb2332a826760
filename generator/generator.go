package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500

	Fallback = "I apologize, but I encountered an error generating the response. Please try again."

	systemPrompt = "You are a knowledgeable assistant helping users understand the content of a book. " +
		"Provide accurate, relevant information based on the context provided."

	promptTemplate = `Based on the following context from the book, please answer the user's question.
If the answer cannot be found in the context, say so.

Context: %s

Question: %s

Answer:`
)

type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Model is a generative model answering a single prompt.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

type Generator struct {
	log         *slog.Logger
	model       Model
	temperature float64
	maxTokens   int
}

type Option func(g *Generator)

func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func New(model Model, opts ...Option) *Generator {
	g := &Generator{
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		model:       model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func BuildPrompt(context, query string) string {
	return fmt.Sprintf(promptTemplate, context, query)
}

// Generate answers query from context. Model failures are logged and
// replaced by Fallback, Generate never fails.
func (g *Generator) Generate(ctx context.Context, context, query string) string {
	answer, err := g.model.Complete(ctx, Prompt{
		System:      systemPrompt,
		User:        BuildPrompt(context, query),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		g.log.Error("failed to generate response", slog.String("error", err.Error()))
		return Fallback
	}

	return answer
}
