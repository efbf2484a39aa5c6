package fts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mnemohq/mnemo/internal/memory"
)

// index implements memory.Mirror backed by an FTS5 table.
type index struct {
	db *sql.DB
}

// Name implements memory.Mirror.
func (s *index) Name() string { return "fts" }

// Insert implements memory.Mirror. Re-inserting an id replaces the row; the
// triggers keep the FTS table in sync.
func (s *index) Insert(ctx context.Context, chunk *memory.Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, content, source_type)
		VALUES (?, ?, ?)`,
		chunk.ID, chunk.Content, chunk.SourceType,
	)
	if err != nil {
		return fmt.Errorf("fts: index chunk: %w", err)
	}
	return nil
}

// Delete implements memory.Mirror. Deleting an unknown id is a no-op.
func (s *index) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
		return fmt.Errorf("fts: delete chunk: %w", err)
	}
	return nil
}

// Search implements memory.Mirror. It matches the query text against the
// FTS index; BM25 rank (negative, smaller is better) is negated into the
// descending backend-local score.
func (s *index) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	match := matchExpr(q.Text)
	if match == "" || q.Limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT c.id, c.content, c.source_type, -chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{match}
	if q.SourceType != "" {
		query += ` AND c.source_type = ?`
		args = append(args, q.SourceType)
	}
	query += ` ORDER BY chunks_fts.rank LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fts: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []memory.SearchResult
	for rows.Next() {
		r := memory.SearchResult{Backend: s.Name()}
		if err := rows.Scan(&r.ID, &r.Content, &r.SourceType, &r.Score); err != nil {
			return nil, fmt.Errorf("fts: scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fts: search rows: %w", err)
	}
	return results, nil
}

// matchExpr turns free text into an FTS5 OR query of quoted terms, so user
// input can never inject FTS syntax.
func matchExpr(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
