package gateway

import (
	"bytes"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal(bytes.TrimSpace([]byte(s)), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty yaml document")
	}
	return doc.Content[0]
}

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:7600" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v", g.config.ReadTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", g.config.ShutdownTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	err := g.Configure(mustYAMLNode(t, `
bind: "0.0.0.0:9000"
read_timeout: 5s
shutdown_timeout: 30s
`))
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9000" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", g.config.ReadTimeout)
	}
	if g.config.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", g.config.ShutdownTimeout)
	}
}

func TestGateway_ValidateBind(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = "not-an-address"
	if err := g.Validate(); err == nil {
		t.Error("Validate accepted a bad bind address")
	}

	g.config.Bind = "127.0.0.1:7600"
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
