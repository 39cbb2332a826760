package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/rag-chat/chunker"
	"github.com/gamma-omg/rag-chat/docstore"
)

const (
	stageReading   = "document_reading"
	stageCleaning  = "text_cleaning"
	stageChunking  = "text_chunking"
	stageEmbedding = "embedding_generation"
	stageStorage   = "database_storage"
)

type fileReader interface {
	CanRead(path string) bool
	ReadText(path string) (string, error)
}

type textNormalizer interface {
	Normalize(text string) string
}

type textChunker interface {
	Chunk(text string) []chunker.Chunk
	MaxTokens() int
}

type vectorEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type vectorIndex interface {
	Upsert(ctx context.Context, entries ...docstore.Entry) error
	Count(ctx context.Context) (int, error)
	Forget(ctx context.Context, source string) error
}

// Ingestor runs the one-time ingestion of the source document into the index.
type Ingestor struct {
	log        *slog.Logger
	path       string
	source     string
	batchSize  int
	readers    []fileReader
	normalizer textNormalizer
	chunker    textChunker
	embedder   vectorEmbedder
	index      vectorIndex
	progress   *ProgressFile
}

// Run ingests the source document unless the index already holds entries.
// A failure aborts the run, entries stored by earlier batches are kept.
func (in *Ingestor) Run(ctx context.Context) error {
	n, err := in.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count index entries: %w", err)
	}
	if n > 0 {
		in.log.Info("index already populated, skipping ingestion", slog.Int("entries", n))
		return nil
	}

	in.log.Info("starting document processing", slog.String("path", in.path))

	in.saveProgress(stageReading, false)
	text, err := in.readText()
	if err != nil {
		return err
	}
	in.saveProgress(stageReading, true)

	in.saveProgress(stageCleaning, false)
	text = in.normalizer.Normalize(text)
	in.saveProgress(stageCleaning, true)

	in.saveProgress(stageChunking, false)
	chunks := in.chunker.Chunk(text)
	in.log.Info("created chunks", slog.Int("chunks", len(chunks)), slog.Int("max_tokens", in.chunker.MaxTokens()))
	in.saveProgress(stageChunking, true)

	in.saveProgress(stageEmbedding, false)
	vectors, err := in.embedder.Embed(ctx, chunker.Texts(chunks))
	if err != nil {
		return fmt.Errorf("failed to embed chunks of %s: %w", in.path, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	in.saveProgress(stageEmbedding, true)

	in.saveProgress(stageStorage, false)
	err = in.store(ctx, chunks, vectors)
	if err != nil {
		return err
	}
	in.saveProgress(stageStorage, true)

	in.log.Info("processing complete", slog.Int("entries", len(chunks)))
	return nil
}

// Reingest drops what the index holds for the source and ingests it again.
func (in *Ingestor) Reingest(ctx context.Context) error {
	err := in.index.Forget(ctx, in.source)
	if err != nil {
		return fmt.Errorf("failed to forget %s: %w", in.source, err)
	}

	return in.Run(ctx)
}

func (in *Ingestor) readText() (string, error) {
	reader, err := in.findReader(in.path)
	if err != nil {
		return "", err
	}

	text, err := reader.ReadText(in.path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", in.path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document %s is empty", in.path)
	}

	return text, nil
}

func (in *Ingestor) store(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	size := in.batchSize
	if size <= 0 {
		size = len(chunks)
	}

	for pos := 0; pos < len(chunks); pos += size {
		end := min(pos+size, len(chunks))

		entries := make([]docstore.Entry, 0, end-pos)
		for i := pos; i < end; i++ {
			entries = append(entries, docstore.Entry{
				ID:     docstore.EntryID(chunks[i].ID),
				Vector: vectors[i],
				Text:   chunks[i].Text,
				Metadata: docstore.Metadata{
					ChunkID: chunks[i].ID,
					Source:  in.source,
				},
			})
		}

		err := in.index.Upsert(ctx, entries...)
		if err != nil {
			return fmt.Errorf("failed to store chunks %d-%d: %w", pos, end-1, err)
		}
	}

	return nil
}

func (in *Ingestor) findReader(path string) (fileReader, error) {
	for _, r := range in.readers {
		if r.CanRead(path) {
			return r, nil
		}
	}

	return nil, errors.New("unable to find reader for file: " + path)
}

func (in *Ingestor) saveProgress(stage string, completed bool) {
	err := in.progress.Save(stage, completed)
	if err != nil {
		in.log.Warn("failed to save progress", slog.String("stage", stage), slog.String("error", err.Error()))
	}
}
