package fts

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
)

func newTestIndex(t *testing.T) *index {
	t.Helper()

	dir := t.TempDir()
	m := &Module{config: Config{Path: filepath.Join(dir, "fts.db")}}
	m.config.defaults()

	if err := m.Provision(core.NewAppContext(slog.Default(), dir)); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	return m.index
}

func chunk(id, content, sourceType string) *memory.Chunk {
	return &memory.Chunk{ID: id, Content: content, SourceType: sourceType}
}

func TestInsertAndSearch(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	chunks := []*memory.Chunk{
		chunk("01A", "The sky is blue today", "fact"),
		chunk("01B", "Grass is green in spring", "fact"),
		chunk("01C", "Remember to buy milk", "todo"),
	}
	for _, c := range chunks {
		if err := s.Insert(ctx, c); err != nil {
			t.Fatalf("insert %s: %v", c.ID, err)
		}
	}

	results, err := s.Search(ctx, memory.Query{Text: "color of the sky", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for a keyword hit")
	}
	if results[0].ID != "01A" {
		t.Errorf("top id = %q, want 01A", results[0].ID)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %v, want > 0", results[0].Score)
	}
	if results[0].Backend != "fts" {
		t.Errorf("backend = %q", results[0].Backend)
	}
}

func TestSearch_RanksDescending(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Insert(ctx, chunk("01A", "sky sky sky", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, chunk("01B", "sky and a lot of other words diluting the match", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := s.Search(ctx, memory.Query{Text: "sky", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %v, %v", results[0].Score, results[1].Score)
	}
}

func TestSearch_SourceTypeFilter(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Insert(ctx, chunk("01A", "buy milk", "todo")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, chunk("01B", "milk is white", "fact")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := s.Search(ctx, memory.Query{Text: "milk", SourceType: "todo", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "01A" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearch_QuerySyntaxIsInert(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Insert(ctx, chunk("01A", "plain text", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// FTS5 operators in user input must not be interpreted.
	for _, q := range []string{`"unbalanced`, `NEAR(a b)`, `text AND -plain`, `col:value`} {
		if _, err := s.Search(ctx, memory.Query{Text: q, Limit: 5}); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Insert(ctx, chunk("01A", "ephemeral entry", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Delete(ctx, "01A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "ghost"); err != nil {
		t.Fatalf("delete unknown id: %v", err)
	}

	results, err := s.Search(ctx, memory.Query{Text: "ephemeral", Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestReinsertReplacesContent(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Insert(ctx, chunk("01A", "old words", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, chunk("01A", "new words", "")); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	old, err := s.Search(ctx, memory.Query{Text: "old", Limit: 5})
	if err != nil {
		t.Fatalf("search old: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("stale index entry survived: %+v", old)
	}

	updated, err := s.Search(ctx, memory.Query{Text: "new", Limit: 5})
	if err != nil {
		t.Fatalf("search new: %v", err)
	}
	if len(updated) != 1 {
		t.Errorf("got %d results, want 1", len(updated))
	}
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	m := &Module{}
	info := m.ModuleInfo()
	if info.ID != "mirror.fts" {
		t.Errorf("ID = %q", info.ID)
	}
	if _, ok := info.New().(*Module); !ok {
		t.Error("New() should return *Module")
	}
}
