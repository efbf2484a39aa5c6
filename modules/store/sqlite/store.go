package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mnemohq/mnemo/internal/memory"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// chunkStore implements memory.Primary backed by SQLite.
type chunkStore struct {
	db *sql.DB
}

// Name implements memory.Primary.
func (s *chunkStore) Name() string { return "sqlite" }

// Insert persists a chunk. A content_hash collision with an existing row
// surfaces as memory.ErrDuplicateContent; the caller re-reads the winner.
func (s *chunkStore) Insert(ctx context.Context, chunk *memory.Chunk) error {
	metaJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, content, content_hash, embedding, metadata, source_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Content, chunk.ContentHash,
		memory.EncodeVector(chunk.Embedding),
		string(metaJSON), chunk.SourceType,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return memory.ErrDuplicateContent
		}
		return fmt.Errorf("sqlite: insert chunk: %w", err)
	}

	return nil
}

// GetByHash returns the chunk with the given content hash, or
// memory.ErrNotFound.
func (s *chunkStore) GetByHash(ctx context.Context, hash string) (*memory.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, content_hash, embedding, metadata, source_type,
		       created_at, access_count, last_accessed_at
		FROM chunks
		WHERE content_hash = ?`,
		hash,
	)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	return chunk, err
}

// Search ranks all candidate chunks by cosine similarity against the query
// embedding and returns the top q.Limit.
func (s *chunkStore) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	query := `SELECT id, content, embedding, metadata, source_type FROM chunks`
	args := []any{}
	if q.SourceType != "" {
		query += ` WHERE source_type = ?`
		args = append(args, q.SourceType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []memory.SearchResult
	for rows.Next() {
		var (
			r        memory.SearchResult
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&r.ID, &r.Content, &blob, &metaJSON, &r.SourceType); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}

		embedding, err := memory.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite: chunk %s: %w", r.ID, err)
		}

		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal metadata for %s: %w", r.ID, err)
			}
		}

		r.Score = memory.Cosine(q.Embedding, embedding)
		r.Backend = s.Name()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// BumpAccess increments the access counter and touches last_accessed_at for
// the given ids.
func (s *chunkStore) BumpAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE chunks
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: bump access: %w", err)
	}
	return nil
}

// Count implements memory.Primary.
func (s *chunkStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count chunks: %w", err)
	}
	return n, nil
}

// Ping implements memory.Primary.
func (s *chunkStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// scanChunk reads a full chunk row in the column order used by GetByHash.
func scanChunk(row *sql.Row) (*memory.Chunk, error) {
	var (
		chunk        memory.Chunk
		blob         []byte
		metaJSON     string
		createdAtStr string
		lastAccessed sql.NullString
	)

	err := row.Scan(
		&chunk.ID, &chunk.Content, &chunk.ContentHash, &blob, &metaJSON,
		&chunk.SourceType, &createdAtStr, &chunk.AccessCount, &lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	chunk.Embedding, err = memory.DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("sqlite: chunk %s: %w", chunk.ID, err)
	}

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal metadata for %s: %w", chunk.ID, err)
		}
	}

	if createdAtStr != "" {
		t, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at %q: %w", createdAtStr, err)
		}
		chunk.CreatedAt = t
	}

	if lastAccessed.Valid && lastAccessed.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastAccessed.String)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse last_accessed_at %q: %w", lastAccessed.String, err)
		}
		chunk.LastAccessedAt = &t
	}

	return &chunk, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var serr *sqlitedrv.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
