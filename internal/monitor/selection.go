package monitor

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/s22625/supcut/internal/store"
)

// Selection is the persisted part of the dashboard state. Only deselected
// entries are stored, as paths relative to the project root, so new files
// start selected.
type Selection struct {
	Unwatched           []string `yaml:"unwatched,omitempty"`
	DeselectedTestFiles []string `yaml:"deselected_test_files,omitempty"`
}

const selectionFile = "selection.yaml"

// LoadSelection loads the selection from the .supcut directory.
// Falls back to an empty selection if the file doesn't exist or is invalid.
func LoadSelection(stateDir string) *Selection {
	sel := &Selection{}
	if stateDir == "" {
		return sel
	}

	data, err := os.ReadFile(filepath.Join(stateDir, selectionFile))
	if err != nil {
		return sel
	}

	var loaded Selection
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return sel
	}
	return &loaded
}

// SaveSelection saves the selection to the .supcut directory.
func SaveSelection(stateDir string, sel *Selection) error {
	if stateDir == "" {
		return nil
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(sel)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(stateDir, selectionFile), data, 0644)
}

// SelectionFromSnapshot captures the deselected paths of snap.
func SelectionFromSnapshot(snap store.Snapshot, root string) *Selection {
	sel := &Selection{}
	for _, w := range snap.Watched {
		if !w.Selected {
			sel.Unwatched = append(sel.Unwatched, relPath(root, w.Path))
		}
	}
	for _, f := range snap.TestFiles {
		if !snap.SelectedTestFiles[f] {
			sel.DeselectedTestFiles = append(sel.DeselectedTestFiles, relPath(root, f))
		}
	}
	sort.Strings(sel.Unwatched)
	sort.Strings(sel.DeselectedTestFiles)
	return sel
}

// Apply deselects the stored paths in st. Paths no longer watched are
// ignored. It returns the number of entries applied.
func (s *Selection) Apply(st *store.RunStore, root string) int {
	applied := 0
	for _, p := range s.Unwatched {
		if st.SetWatchSelected(absPath(root, p), false) {
			applied++
		}
	}
	for _, p := range s.DeselectedTestFiles {
		if st.SetTestFileSelected(absPath(root, p), false) {
			applied++
		}
	}
	return applied
}

func relPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func absPath(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}
