package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeConfig(t, `
version: "1"
memory:
  dims: 384
  overfetch: 3
modules:
  store.sqlite:
    path: /tmp/mnemo.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Version != "1" {
		t.Errorf("Version = %q, want %q", cfg.Version, "1")
	}
	if cfg.Memory.Dims != 384 {
		t.Errorf("Memory.Dims = %d, want 384", cfg.Memory.Dims)
	}
	if cfg.Memory.Overfetch != 3 {
		t.Errorf("Memory.Overfetch = %d, want 3", cfg.Memory.Overfetch)
	}
	if _, ok := cfg.Modules["store.sqlite"]; !ok {
		t.Error("Modules missing store.sqlite entry")
	}
}

func TestLoad_MemoryDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "1"
modules:
  store.sqlite: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Memory.Dims != 384 {
		t.Errorf("default Dims = %d, want 384", cfg.Memory.Dims)
	}
	if cfg.Memory.Overfetch != 2 {
		t.Errorf("default Overfetch = %d, want 2", cfg.Memory.Overfetch)
	}
	if cfg.Memory.DefaultLimit != 10 {
		t.Errorf("default DefaultLimit = %d, want 10", cfg.Memory.DefaultLimit)
	}
	if cfg.Memory.MaxLimit != 100 {
		t.Errorf("default MaxLimit = %d, want 100", cfg.Memory.MaxLimit)
	}
	if cfg.Memory.MaxMetadataBytes != 8192 {
		t.Errorf("default MaxMetadataBytes = %d, want 8192", cfg.Memory.MaxMetadataBytes)
	}
	if cfg.Memory.PrimaryTimeout != 5*time.Second {
		t.Errorf("default PrimaryTimeout = %v, want 5s", cfg.Memory.PrimaryTimeout)
	}
	if cfg.Memory.EmbedTimeout != 15*time.Second {
		t.Errorf("default EmbedTimeout = %v, want 15s", cfg.Memory.EmbedTimeout)
	}
	if cfg.Memory.MirrorTimeout != 3*time.Second {
		t.Errorf("default MirrorTimeout = %v, want 3s", cfg.Memory.MirrorTimeout)
	}
}

func TestLoad_MemoryTimeouts(t *testing.T) {
	path := writeConfig(t, `
version: "1"
memory:
  primary_timeout: 2s
  embed_timeout: 5s
  mirror_timeout: 500ms
  mirror_timeouts:
    fts: 250ms
modules:
  store.sqlite: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Memory.PrimaryTimeout != 2*time.Second {
		t.Errorf("PrimaryTimeout = %v, want 2s", cfg.Memory.PrimaryTimeout)
	}
	if cfg.Memory.EmbedTimeout != 5*time.Second {
		t.Errorf("EmbedTimeout = %v, want 5s", cfg.Memory.EmbedTimeout)
	}
	if cfg.Memory.MirrorTimeout != 500*time.Millisecond {
		t.Errorf("MirrorTimeout = %v, want 500ms", cfg.Memory.MirrorTimeout)
	}
	if got := cfg.Memory.MirrorTimeouts["fts"]; got != 250*time.Millisecond {
		t.Errorf("MirrorTimeouts[fts] = %v, want 250ms", got)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MNEMO_TEST_DB", "/data/test.db")

	path := writeConfig(t, `
version: "1"
modules:
  store.sqlite:
    path: ${MNEMO_TEST_DB}
  mirror.fts:
    path: ${MNEMO_TEST_MISSING:-/data/fts.db}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var sqliteCfg struct {
		Path string `yaml:"path"`
	}
	node := cfg.Modules["store.sqlite"]
	if err := node.Decode(&sqliteCfg); err != nil {
		t.Fatalf("decode store.sqlite: %v", err)
	}
	if sqliteCfg.Path != "/data/test.db" {
		t.Errorf("expanded path = %q, want %q", sqliteCfg.Path, "/data/test.db")
	}

	var ftsCfg struct {
		Path string `yaml:"path"`
	}
	node = cfg.Modules["mirror.fts"]
	if err := node.Decode(&ftsCfg); err != nil {
		t.Fatalf("decode mirror.fts: %v", err)
	}
	if ftsCfg.Path != "/data/fts.db" {
		t.Errorf("defaulted path = %q, want %q", ftsCfg.Path, "/data/fts.db")
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeConfig(t, `
version: "1"
modules:
  store.sqlite:
    path: ${MNEMO_DEFINITELY_UNSET_VAR}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "MNEMO_DEFINITELY_UNSET_VAR") {
		t.Errorf("error %q does not name the unresolved variable", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestResolve_SortedIDs(t *testing.T) {
	path := writeConfig(t, `
version: "1"
modules:
  store.sqlite: {}
  cache.ristretto: {}
  mirror.fts: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ids := Resolve(cfg)
	want := []string{"cache.ristretto", "mirror.fts", "store.sqlite"}
	if len(ids) != len(want) {
		t.Fatalf("Resolve returned %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
