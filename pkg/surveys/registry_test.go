package surveys

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write surveys file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "surveys.yaml", `
surveys:
  - id: SV_1
    name: Onboarding
  - id: SV_2
    enabled: false
  - id: " SV_3 "
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 3 {
		t.Fatalf("expected 3 surveys, got %d", len(reg.All()))
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "SV_1" || enabled[1].ID != "SV_3" {
		t.Fatalf("unexpected enabled surveys %#v", enabled)
	}

	reg.SetName("SV_3", "Exit survey")
	reg.SetName("SV_1", "ignored")
	if s, _ := reg.ByID("SV_3"); s.Name != "Exit survey" {
		t.Fatalf("expected resolved name, got %q", s.Name)
	}
	if s, _ := reg.ByID("SV_1"); s.Name != "Onboarding" {
		t.Fatalf("configured name must win, got %q", s.Name)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "surveys.json", `{"surveys":[{"id":"SV_1"}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if _, ok := reg.ByID("SV_1"); !ok {
		t.Fatalf("expected SV_1 to be loaded")
	}
}

func TestLoadRegistryRejectsDuplicatesAndMissingIDs(t *testing.T) {
	dup := writeFile(t, "dup.yaml", "surveys:\n  - id: SV_1\n  - id: SV_1\n")
	if _, err := LoadRegistry(dup); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	missing := writeFile(t, "missing.yaml", "surveys:\n  - name: no id\n")
	if _, err := LoadRegistry(missing); err == nil {
		t.Fatalf("expected missing id error")
	}
	empty := writeFile(t, "empty.yaml", "surveys: []\n")
	if _, err := LoadRegistry(empty); err == nil {
		t.Fatalf("expected empty registry error")
	}
}
