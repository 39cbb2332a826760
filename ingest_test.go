package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gamma-omg/rag-chat/chunker"
	"github.com/gamma-omg/rag-chat/docstore"
	"github.com/gamma-omg/rag-chat/normalizer"
	"github.com/gamma-omg/rag-chat/readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer makes every word, with its trailing space, one token.
type wordTokenizer struct {
	vocab []string
	ids   map[string]int
}

func (t *wordTokenizer) Encode(text string) []int {
	if t.ids == nil {
		t.ids = make(map[string]int)
	}

	var tokens []int
	for _, w := range strings.SplitAfter(text, " ") {
		if w == "" {
			continue
		}
		id, ok := t.ids[w]
		if !ok {
			id = len(t.vocab)
			t.vocab = append(t.vocab, w)
			t.ids[w] = id
		}
		tokens = append(tokens, id)
	}

	return tokens
}

func (t *wordTokenizer) Decode(tokens []int) string {
	var sb strings.Builder
	for _, id := range tokens {
		sb.WriteString(t.vocab[id])
	}

	return sb.String()
}

type fakeEmbedder struct {
	calls int
	texts []string
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.texts = append(e.texts, texts...)
	if e.err != nil {
		return nil, e.err
	}

	res := make([][]float32, len(texts))
	for i := range texts {
		res[i] = []float32{float32(i), 1}
	}

	return res, nil
}

type fakeIndex struct {
	entries     map[string]docstore.Entry
	upsertCalls [][]docstore.Entry
	forgotten   []string
	upsertErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]docstore.Entry)}
}

func (f *fakeIndex) Upsert(_ context.Context, entries ...docstore.Entry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}

	f.upsertCalls = append(f.upsertCalls, entries)
	for _, e := range entries {
		f.entries[e.ID] = e
	}

	return nil
}

func (f *fakeIndex) Count(context.Context) (int, error) {
	return len(f.entries), nil
}

func (f *fakeIndex) Forget(_ context.Context, source string) error {
	f.forgotten = append(f.forgotten, source)
	for id, e := range f.entries {
		if e.Metadata.Source == source {
			delete(f.entries, id)
		}
	}

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIngestor(t *testing.T, text string, maxTokens int) (*Ingestor, *fakeEmbedder, *fakeIndex) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	emb := &fakeEmbedder{}
	idx := newFakeIndex()

	return &Ingestor{
		log:        discardLogger(),
		path:       path,
		source:     "book",
		batchSize:  2,
		readers:    []fileReader{&readers.TxtFileReader{}},
		normalizer: normalizer.New(),
		chunker:    chunker.New(&wordTokenizer{}, maxTokens),
		embedder:   emb,
		index:      idx,
		progress:   &ProgressFile{path: filepath.Join(dir, "progress.json")},
	}, emb, idx
}

func Test_Ingestor_Run(t *testing.T) {
	in, emb, idx := newTestIngestor(t, "The Congress shall have Power to lay and collect Taxes, Duties, Imposts and Excises!", 3)

	require.NoError(t, in.Run(context.Background()))

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, []string{"congress shall power ", "lay collect taxes ", "duties imposts excises"}, emb.texts)

	require.Len(t, idx.entries, 3)
	assert.Len(t, idx.upsertCalls, 2)
	assert.Len(t, idx.upsertCalls[0], 2)
	assert.Len(t, idx.upsertCalls[1], 1)

	e := idx.entries["chunk_1"]
	assert.Equal(t, "lay collect taxes ", e.Text)
	assert.Equal(t, docstore.Metadata{ChunkID: 1, Source: "book"}, e.Metadata)
	assert.Equal(t, []float32{1, 1}, e.Vector)
}

func Test_Ingestor_Run_LogsChunkBound(t *testing.T) {
	in, _, _ := newTestIngestor(t, "liberty justice union tranquility", 2)

	var buf bytes.Buffer
	in.log = slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, in.Run(context.Background()))
	assert.Contains(t, buf.String(), `"msg":"created chunks","chunks":2,"max_tokens":2`)
}

func Test_Ingestor_Run_SkipsPopulatedIndex(t *testing.T) {
	in, emb, idx := newTestIngestor(t, "liberty justice union", 2)

	require.NoError(t, in.Run(context.Background()))
	n, _ := idx.Count(context.Background())
	upserts := len(idx.upsertCalls)

	require.NoError(t, in.Run(context.Background()))

	after, _ := idx.Count(context.Background())
	assert.Equal(t, n, after)
	assert.Len(t, idx.upsertCalls, upserts)
	assert.Equal(t, 1, emb.calls)
}

func Test_Ingestor_Run_OnlyStopWords(t *testing.T) {
	in, _, idx := newTestIngestor(t, "the and of 42 !!!", 2)

	require.NoError(t, in.Run(context.Background()))
	assert.Empty(t, idx.entries)
}

func Test_Ingestor_Run_MissingSource(t *testing.T) {
	in, emb, _ := newTestIngestor(t, "liberty", 2)
	in.path = filepath.Join(t.TempDir(), "missing.txt")

	err := in.Run(context.Background())
	assert.ErrorContains(t, err, "failed to read document")
	assert.Equal(t, 0, emb.calls)
}

func Test_Ingestor_Run_EmptySource(t *testing.T) {
	in, _, _ := newTestIngestor(t, "  \n ", 2)

	err := in.Run(context.Background())
	assert.ErrorContains(t, err, "empty")
}

func Test_Ingestor_Run_UnsupportedSource(t *testing.T) {
	in, _, _ := newTestIngestor(t, "liberty", 2)
	in.path = "book.bin"

	err := in.Run(context.Background())
	assert.ErrorContains(t, err, "unable to find reader")
}

func Test_Ingestor_Run_EmbeddingFailureAborts(t *testing.T) {
	in, emb, idx := newTestIngestor(t, "liberty justice union", 1)
	emb.err = errors.New("provider down")

	err := in.Run(context.Background())
	assert.ErrorContains(t, err, "provider down")
	assert.Empty(t, idx.upsertCalls)
}

func Test_Ingestor_Run_Progress(t *testing.T) {
	in, _, _ := newTestIngestor(t, "liberty justice union", 2)

	require.NoError(t, in.Run(context.Background()))

	buf, err := os.ReadFile(in.progress.path)
	require.NoError(t, err)

	var p Progress
	require.NoError(t, json.Unmarshal(buf, &p))
	assert.Equal(t, Progress{Stage: stageStorage, Completed: true}, p)
}

func Test_Ingestor_Run_ProgressOnFailure(t *testing.T) {
	in, emb, _ := newTestIngestor(t, "liberty justice union", 2)
	emb.err = errors.New("provider down")

	require.Error(t, in.Run(context.Background()))

	buf, err := os.ReadFile(in.progress.path)
	require.NoError(t, err)

	var p Progress
	require.NoError(t, json.Unmarshal(buf, &p))
	assert.Equal(t, Progress{Stage: stageEmbedding, Completed: false}, p)
}

func Test_Ingestor_Reingest(t *testing.T) {
	in, emb, idx := newTestIngestor(t, "liberty justice union", 2)
	require.NoError(t, in.Run(context.Background()))

	require.NoError(t, os.WriteFile(in.path, []byte("domestic tranquility"), 0o644))
	require.NoError(t, in.Reingest(context.Background()))

	assert.Equal(t, []string{"book"}, idx.forgotten)
	assert.Equal(t, 2, emb.calls)
	require.Len(t, idx.entries, 1)
	assert.Equal(t, "domestic tranquility", idx.entries["chunk_0"].Text)
}
