package core

import "testing"

type plainModule struct{ id ModuleID }

func (m *plainModule) ModuleInfo() ModuleInfo {
	id := m.id
	return ModuleInfo{ID: id, New: func() Module { return &plainModule{id: id} }}
}

func TestRegisterModule_Duplicate(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&plainModule{id: "test.dup"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterModule(&plainModule{id: "test.dup"})
}

func TestRegisterModule_EmptyID(t *testing.T) {
	t.Cleanup(resetRegistry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on empty module ID")
		}
	}()
	RegisterModule(&plainModule{})
}

func TestGetModulesByNamespace(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&plainModule{id: "mirror.alpha"})
	RegisterModule(&plainModule{id: "mirror.beta"})
	RegisterModule(&plainModule{id: "store.gamma"})

	mods := GetModulesByNamespace("mirror")
	if len(mods) != 2 {
		t.Fatalf("got %d modules, want 2", len(mods))
	}
	if mods[0].ID != "mirror.alpha" || mods[1].ID != "mirror.beta" {
		t.Errorf("unexpected order: %v, %v", mods[0].ID, mods[1].ID)
	}
}

func TestModuleID_Namespace(t *testing.T) {
	cases := []struct {
		id   ModuleID
		want string
	}{
		{"store.sqlite", "store"},
		{"mirror.fts", "mirror"},
		{"bare", "bare"},
		{"gateway.http", "gateway"},
		{"a.b.c", "a"},
	}
	for _, tc := range cases {
		if got := tc.id.Namespace(); got != tc.want {
			t.Errorf("Namespace(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
