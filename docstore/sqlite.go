package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteStore keeps vectors in a sqlite-vec vec0 table using cosine distance
// and chunk text with metadata in a companion table.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
}

func NewSQLiteStore(path string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid vector dimensions: %d", dimensions)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate vector tables: %w", err)
	}

	return &SQLiteStore{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("failed to create vectors table: %w", err)
	}

	const entriesDDL = `
CREATE TABLE IF NOT EXISTS entries (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	chunk_id INTEGER NOT NULL,
	source   TEXT NOT NULL
)`
	if _, err := db.Exec(entriesDDL); err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if len(e.Vector) != s.dimensions {
			return fmt.Errorf("entry %s has dimension %d, index expects %d", e.ID, len(e.Vector), s.dimensions)
		}

		blob, err := sqlite_vec.SerializeFloat32(e.Vector)
		if err != nil {
			return fmt.Errorf("failed to serialize vector %s: %w", e.ID, err)
		}

		// vec0 has no ON CONFLICT support
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, e.ID); err != nil {
			return fmt.Errorf("failed to delete vector %s: %w", e.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, e.ID, blob); err != nil {
			return fmt.Errorf("failed to insert vector %s: %w", e.ID, err)
		}

		const q = `INSERT INTO entries(id, text, chunk_id, source) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text, chunk_id = excluded.chunk_id, source = excluded.source`
		if _, err := tx.ExecContext(ctx, q, e.ID, e.Text, e.Metadata.ChunkID, e.Metadata.Source); err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}

	return n, nil
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}

	const q = `SELECT v.id, v.distance, COALESCE(e.text, ''), COALESCE(e.chunk_id, 0), COALESCE(e.source, '')
FROM vectors v
LEFT JOIN entries e ON e.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Distance, &h.Text, &h.Metadata.ChunkID, &h.Metadata.Source); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return hits, nil
}

// Forget removes every entry ingested from source.
func (s *SQLiteStore) Forget(ctx context.Context, source string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM entries WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("failed to list entries of %s: %w", source, err)
	}

	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan entry id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate entries: %w", err)
	}

	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, ids...); err != nil {
			return fmt.Errorf("failed to delete vectors of %s: %w", source, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id IN (`+placeholders+`)`, ids...); err != nil {
			return fmt.Errorf("failed to delete entries of %s: %w", source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forget: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
