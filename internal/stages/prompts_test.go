package stages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_System(t *testing.T) {
	pm := NewPromptManager("")
	prompt, err := pm.System("research")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, promptSep) {
		t.Fatalf("expected identity and stage prompt joined, got %q", prompt)
	}
	if strings.Index(prompt, "Foundry") > strings.Index(prompt, promptSep) {
		t.Error("Identity should be before the stage prompt")
	}
}

func TestPromptManager_Override(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"identity.md": "Identity Content",
		"research.md": "Research Override",
		"custom.md":   "Custom Content",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(dir)
	prompt, err := pm.System("research")
	if err != nil {
		t.Fatal(err)
	}
	if prompt != "Identity Content"+promptSep+"Research Override" {
		t.Errorf("unexpected prompt %q", prompt)
	}

	// Embedded defaults still serve keys the directory does not override.
	prompt, err = pm.System("persona")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(prompt, "Identity Content") {
		t.Errorf("identity override not applied: %q", prompt)
	}

	names := pm.Names()
	found := false
	for _, n := range names {
		if n == "custom" {
			found = true
		}
		if n == "identity" {
			t.Error("identity should not be listed as a stage prompt")
		}
	}
	if !found {
		t.Errorf("custom prompt missing from %v", names)
	}
}

func TestPromptManager_Missing(t *testing.T) {
	if _, err := NewPromptManager("").System("no_such_stage"); err == nil {
		t.Fatal("expected error for unknown prompt")
	}
}

func TestEveryStageHasPrompt(t *testing.T) {
	pm := NewPromptManager("")
	for _, key := range promptKeys {
		if _, err := pm.System(key); err != nil {
			t.Errorf("stage prompt %s: %v", key, err)
		}
	}
}
