package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

// indexProvider encodes the text position into the vector so order can be checked.
type indexProvider struct {
	calls [][]string
}

func (p *indexProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.calls = append(p.calls, texts)
	res := make([][]float32, 0, len(texts))
	for _, t := range texts {
		var n float32
		_, _ = fmt.Sscanf(t, "text-%g", &n)
		res = append(res, []float32{n, 1})
	}

	return res, nil
}

// instantTimer fires right away and records every requested wait.
type instantTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

func texts(n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = fmt.Sprintf("text-%d", i)
	}

	return res
}

func Test_Embed_BatchCount(t *testing.T) {
	var cases = []struct {
		n     int
		batch int
		calls int
	}{
		{n: 0, batch: 10, calls: 0},
		{n: 1, batch: 10, calls: 1},
		{n: 10, batch: 10, calls: 1},
		{n: 11, batch: 10, calls: 2},
		{n: 250, batch: 100, calls: 3},
		{n: 7, batch: 1, calls: 7},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			p := &indexProvider{}
			client := NewClient(p, WithBatchSize(c.batch))

			res, err := client.Embed(context.Background(), texts(c.n))
			require.NoError(t, err)

			assert.Len(t, p.calls, c.calls)
			require.Len(t, res, c.n)
			for j, v := range res {
				assert.Equal(t, float32(j), v[0])
			}
		})
	}
}

func Test_Embed_RetriesThenSucceeds(t *testing.T) {
	p := new(mockProvider)
	p.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return(nil, errors.New("rate limited")).Twice()
	p.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return([][]float32{{1, 0}, {0, 1}}, nil).Once()

	timer := newInstantTimer()
	client := NewClient(p,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Delay: time.Minute, Multiplier: 1}),
		WithTimer(timer))

	res, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, res)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, timer.waits)
	p.AssertNumberOfCalls(t, "EmbedBatch", 3)
}

func Test_Embed_FailsAfterMaxAttempts(t *testing.T) {
	for _, attempts := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("attempts_%d", attempts), func(t *testing.T) {
			p := new(mockProvider)
			p.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

			timer := newInstantTimer()
			client := NewClient(p,
				WithRetryPolicy(RetryPolicy{MaxAttempts: attempts, Delay: time.Second, Multiplier: 2}),
				WithTimer(timer))

			res, err := client.Embed(context.Background(), []string{"a"})
			require.Error(t, err)

			assert.Nil(t, res)
			assert.ErrorContains(t, err, "unavailable")
			assert.Len(t, timer.waits, attempts-1)
			p.AssertNumberOfCalls(t, "EmbedBatch", attempts)
		})
	}
}

func Test_Embed_NoPartialResult(t *testing.T) {
	p := new(mockProvider)
	p.On("EmbedBatch", mock.Anything, []string{"a"}).Return([][]float32{{1}}, nil)
	p.On("EmbedBatch", mock.Anything, []string{"b"}).Return(nil, errors.New("boom"))

	client := NewClient(p,
		WithBatchSize(1),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, Delay: time.Second}),
		WithTimer(newInstantTimer()))

	res, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Nil(t, res)

	p.AssertNumberOfCalls(t, "EmbedBatch", 3)
	p.AssertNotCalled(t, "EmbedBatch", mock.Anything, []string{"c"})
}

func Test_Embed_ShortBatchIsRetried(t *testing.T) {
	p := new(mockProvider)
	p.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil).Once()
	p.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1}, {2}}, nil).Once()

	client := NewClient(p, WithTimer(newInstantTimer()))

	res, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, res)
	p.AssertNumberOfCalls(t, "EmbedBatch", 2)
}

func Test_Embed_DimensionMismatch(t *testing.T) {
	p := new(mockProvider)
	p.On("EmbedBatch", mock.Anything, []string{"a"}).Return([][]float32{{1, 2}}, nil)
	p.On("EmbedBatch", mock.Anything, []string{"b"}).Return([][]float32{{1, 2, 3}}, nil)

	client := NewClient(p, WithBatchSize(1))

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension")
}
