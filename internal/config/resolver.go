package config

import "slices"

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading: cache before
// gateway, embedder before mirrors and stores, purely by ID sort, with no
// hidden dependency graph — modules bind to each other lazily through the
// service registry.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
