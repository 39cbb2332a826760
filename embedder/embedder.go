package embedder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBatchSize = 100

// Provider turns a batch of texts into one vector per text.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Client struct {
	log       *slog.Logger
	provider  Provider
	batchSize int
	policy    RetryPolicy
	timer     backoff.Timer
}

type Option func(c *Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithBatchSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithTimer replaces the timer used to wait between attempts. A nil timer
// blocks on a real time.Timer.
func WithTimer(t backoff.Timer) Option {
	return func(c *Client) {
		c.timer = t
	}
}

func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		provider:  provider,
		batchSize: DefaultBatchSize,
		policy:    DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Embed returns one vector per text, in input order. Texts are sent to the
// provider in consecutive batches; a batch that still fails after the last
// attempt fails the whole call and nothing is returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, 0, len(texts))
	dim := 0

	for pos := 0; pos < len(texts); pos += c.batchSize {
		end := min(pos+c.batchSize, len(texts))

		vectors, err := c.embedBatch(ctx, pos, texts[pos:end])
		if err != nil {
			return nil, err
		}

		for i, v := range vectors {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", pos+i, len(v), dim)
			}
		}

		res = append(res, vectors...)
	}

	return res, nil
}

func (c *Client) embedBatch(ctx context.Context, offset int, batch []string) ([][]float32, error) {
	var vectors [][]float32
	attempt := 0

	op := func() error {
		attempt++
		v, err := c.provider.EmbedBatch(ctx, batch)
		if err != nil {
			return err
		}
		if len(v) != len(batch) {
			return fmt.Errorf("provider returned %d embeddings for %d texts", len(v), len(batch))
		}

		vectors = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("embedding batch failed, retrying",
			slog.Int("batch", offset),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	b := backoff.WithContext(c.policy.BackOff(), ctx)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, c.timer); err != nil {
		c.log.Error("embedding batch failed",
			slog.Int("batch", offset),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to embed batch at %d after %d attempts: %w", offset, attempt, err)
	}

	return vectors, nil
}
