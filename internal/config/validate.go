package config

import (
	"errors"
	"fmt"

	"github.com/mnemohq/mnemo/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and sanity-checks the
// memory section. Backend-specific validation happens in each module's
// Validate; the primary-store/embedder presence requirement is enforced by
// the wiring layer, which knows which services ended up registered.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if cfg.Memory.Dims <= 0 {
		errs = append(errs, fmt.Errorf("config: memory.dims must be positive, got %d", cfg.Memory.Dims))
	}
	if cfg.Memory.MaxLimit < cfg.Memory.DefaultLimit {
		errs = append(errs, fmt.Errorf(
			"config: memory.max_limit (%d) must be >= memory.default_limit (%d)",
			cfg.Memory.MaxLimit, cfg.Memory.DefaultLimit,
		))
	}

	return errors.Join(errs...)
}
