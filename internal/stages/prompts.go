package stages

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed prompts/*.md
var defaultPrompts embed.FS

const (
	identityPrompt = "identity.md"
	promptSep      = "\n\n---\n\n"
)

// PromptManager assembles system instructions from markdown files. Files in
// Directory override the embedded defaults of the same name.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) read(name string) (string, error) {
	if pm != nil && pm.Directory != "" {
		path := filepath.Join(pm.Directory, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
	}
	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found: %w", name, err)
	}
	return string(data), nil
}

// System returns the identity preamble followed by the named stage prompt.
func (pm *PromptManager) System(key string) (string, error) {
	var contents []string
	if identity, err := pm.read(identityPrompt); err == nil {
		contents = append(contents, strings.TrimSpace(identity))
	}
	body, err := pm.read(key + ".md")
	if err != nil {
		return "", err
	}
	contents = append(contents, strings.TrimSpace(body))
	return strings.Join(contents, promptSep), nil
}

// Names lists every available prompt key, embedded and overridden.
func (pm *PromptManager) Names() []string {
	seen := map[string]bool{}
	entries, _ := fs.ReadDir(defaultPrompts, "prompts")
	for _, e := range entries {
		seen[e.Name()] = true
	}
	if pm != nil && pm.Directory != "" {
		if files, err := os.ReadDir(pm.Directory); err == nil {
			for _, f := range files {
				if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") {
					seen[f.Name()] = true
				}
			}
		}
	}

	var names []string
	for name := range seen {
		if name == identityPrompt {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".md"))
	}
	sort.Strings(names)
	return names
}
