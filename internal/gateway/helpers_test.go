package gateway

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/mnemohq/mnemo/internal/memory/memorytest"
	"github.com/mnemohq/mnemo/internal/session"
)

// testBackends bundles the fakes behind a test gateway so tests can inject
// failures.
type testBackends struct {
	primary  *memorytest.Primary
	mirror   *memorytest.Mirror
	cache    *memorytest.Cache
	embedder *memorytest.Embedder
}

// newTestGateway builds a Gateway wired to in-memory backends, without a
// running HTTP server.
func newTestGateway(t *testing.T) (*Gateway, *testBackends) {
	t.Helper()

	b := &testBackends{
		primary:  memorytest.NewPrimary(),
		mirror:   memorytest.NewMirror("vector"),
		cache:    memorytest.NewCache(),
		embedder: memorytest.NewEmbedder(),
	}

	coord, err := coordinator.New(
		b.primary,
		[]memory.Mirror{b.mirror},
		b.cache,
		b.embedder,
		coordinator.Options{
			PrimaryTimeout: 2 * time.Second,
			MirrorTimeout:  time.Second,
			MaxLimit:       50,
		},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := &Gateway{
		logger: logger,
		coord:  coord,
		hub:    session.NewHub(coord, logger),
	}
	g.config.defaults()
	return g, b
}
