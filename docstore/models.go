package docstore

import "fmt"

const (
	ChunkID = "chunk_id"
	Source  = "source"
)

type Metadata struct {
	ChunkID int    `json:"chunk_id"`
	Source  string `json:"source"`
}

type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// Hit is a search match. Distance is the cosine distance to the query,
// lower is closer.
type Hit struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

// EntryID is the stable index id of a chunk.
func EntryID(chunkID int) string {
	return fmt.Sprintf("chunk_%d", chunkID)
}
