package core

// ModuleID uniquely identifies a module, namespaced by concern
// (e.g. "store.sqlite", "mirror.chromem", "gateway.http").
type ModuleID string

// Namespace returns the portion of the ID before the first dot,
// or the whole ID if it has no namespace.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements.
// Lifecycle behavior is added through the optional interfaces in
// lifecycle.go (Configurable, Provisioner, Validator, Starter, Stopper).
type Module interface {
	ModuleInfo() ModuleInfo
}
