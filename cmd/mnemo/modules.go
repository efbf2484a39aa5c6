package main

// Blank imports register the built-in modules with the core registry.
import (
	_ "github.com/mnemohq/mnemo/internal/gateway"
	_ "github.com/mnemohq/mnemo/internal/maintenance"
	_ "github.com/mnemohq/mnemo/modules/cache/ristretto"
	_ "github.com/mnemohq/mnemo/modules/embedder/ollama"
	_ "github.com/mnemohq/mnemo/modules/mirror/chromem"
	_ "github.com/mnemohq/mnemo/modules/mirror/fts"
	_ "github.com/mnemohq/mnemo/modules/store/sqlite"
)
