package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace is returned for names that resolve outside the root.
var ErrOutsideWorkspace = errors.New("path escapes the workspace")

// Workspace confines exported files to one directory.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) (*Workspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Root: absRoot}, nil
}

// Path resolves name inside the workspace.
func (w *Workspace) Path(name string) (string, error) {
	target := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, name)
	}
	return target, nil
}

// Write stores data under name and returns the absolute path.
func (w *Workspace) Write(name string, data []byte) (string, error) {
	path, err := w.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
