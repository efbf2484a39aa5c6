// Package fts implements the keyword mirror: a SQLite FTS5 full-text index
// in its own database file, searched by query text rather than embedding.
// BM25 rank is negated into a descending backend-local score.
package fts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.Mirror     = (*index)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const (
	defaultDBFile      = "mnemo-fts.db"
	defaultBusyTimeout = 5000
)

// Config holds the FTS mirror configuration.
type Config struct {
	// Path is the index database file. Defaults to mnemo-fts.db under the
	// application data directory. Kept separate from the primary store so
	// an index rebuild never touches durable data.
	Path string `yaml:"path"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

// Module owns the FTS database and registers the index as the mirror.fts
// service.
type Module struct {
	config Config
	db     *sql.DB
	logger *slog.Logger
	index  *index
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "mirror.fts",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("fts: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("fts: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", m.config.Path)
	if err != nil {
		return fmt.Errorf("fts: open %s: %w", m.config.Path, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.TODO(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return fmt.Errorf("fts: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(context.TODO(), fmt.Sprintf("PRAGMA busy_timeout=%d", m.config.BusyTimeout)); err != nil {
		_ = db.Close()
		return fmt.Errorf("fts: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	m.db = db
	m.index = &index{db: db}

	ctx.RegisterService("mirror.fts", m.index)

	m.logger.Info("fts mirror provisioned", "path", m.config.Path)
	return nil
}

// Validate implements core.Validator. It checks the FTS5 virtual table is
// actually usable in the linked SQLite build.
func (m *Module) Validate() error {
	var n int
	if err := m.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM chunks_fts").Scan(&n); err != nil {
		return fmt.Errorf("fts: FTS5 not available: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("fts mirror stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Mirror returns the index implementation.
func (m *Module) Mirror() memory.Mirror {
	return m.index
}
