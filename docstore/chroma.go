package docstore

import (
	"context"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

const DefaultCollection = "book_embeddings"

type ChromaStoreConfig struct {
	BaseURL       string
	Collection    string
	EmbeddingFunc embeddings.EmbeddingFunction
	Reset         bool
}

// ChromaStore keeps entries in a Chroma collection created with cosine space.
// Vectors are always supplied by the caller, the collection embedding
// function is only recorded for Chroma's own bookkeeping.
type ChromaStore struct {
	client chroma.Client
	col    chroma.Collection
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}

	opts := []chroma.CreateCollectionOption{
		chroma.WithHNSWSpaceCreate(embeddings.COSINE),
	}
	if cfg.EmbeddingFunc != nil {
		opts = append(opts, chroma.WithEmbeddingFunctionCreate(cfg.EmbeddingFunc))
	}

	col, err := client.GetOrCreateCollection(ctx, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}

	if cfg.Reset {
		err = client.DeleteCollection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to reset collection %s: %w", name, err)
		}

		col, err = client.GetOrCreateCollection(ctx, name, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate collection %s: %w", name, err)
		}
	}

	return &ChromaStore{client: client, col: col}, nil
}

func (ds *ChromaStore) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]chroma.DocumentID, 0, len(entries))
	texts := make([]string, 0, len(entries))
	vectors := make([]embeddings.Embedding, 0, len(entries))
	metadatas := make([]chroma.DocumentMetadata, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, chroma.DocumentID(e.ID))
		texts = append(texts, e.Text)
		vectors = append(vectors, embeddings.NewEmbeddingFromFloat32(e.Vector))
		metadatas = append(metadatas, chroma.NewDocumentMetadata(
			chroma.NewIntAttribute(ChunkID, int64(e.Metadata.ChunkID)),
			chroma.NewStringAttribute(Source, e.Metadata.Source),
		))
	}

	err := ds.col.Upsert(ctx,
		chroma.WithIDs(ids...),
		chroma.WithTexts(texts...),
		chroma.WithEmbeddings(vectors...),
		chroma.WithMetadatas(metadatas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d entries: %w", len(entries), err)
	}

	return nil
}

func (ds *ChromaStore) Count(ctx context.Context) (int, error) {
	n, err := ds.col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}

	return n, nil
}

func (ds *ChromaStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	// the default include set returns documents, metadatas and distances
	r, err := ds.col.Query(ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chroma.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	hits := []Hit{}
	if len(r.GetDocumentsGroups()) == 0 {
		return hits, nil
	}

	ids := r.GetIDGroups()[0]
	docs := r.GetDocumentsGroups()[0]
	metadatas := r.GetMetadatasGroups()[0]
	distances := r.GetDistancesGroups()[0]
	for i := range len(docs) {
		chunkID, _ := metadatas[i].GetInt(ChunkID)
		source, _ := metadatas[i].GetString(Source)
		hits = append(hits, Hit{
			ID:   string(ids[i]),
			Text: docs[i].ContentString(),
			Metadata: Metadata{
				ChunkID: int(chunkID),
				Source:  source,
			},
			Distance: float32(distances[i]),
		})
	}

	return hits, nil
}

func (ds *ChromaStore) Forget(ctx context.Context, source string) error {
	err := ds.col.Delete(ctx, chroma.WithWhereDelete(chroma.EqString(Source, source)))
	if err != nil {
		return fmt.Errorf("failed to forget source %s: %w", source, err)
	}

	return nil
}

func (ds *ChromaStore) Close() error {
	return ds.client.Close()
}
