package sqlite

import "fmt"

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "mnemo.db"
)

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file location. Defaults to mnemo.db under the
	// application data directory.
	Path string `yaml:"path"`

	// WAL toggles write-ahead logging. Defaults to on.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	return nil
}
