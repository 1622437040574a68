package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// Summary describes a stored definition for listings.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
	Path        string `json:"path"`
}

// FileStore keeps one definition file per workflow in a directory.
// The file stem is the workflow name. Saved definitions are written as TOML;
// YAML and JSON files placed in the directory by hand are read as well.
type FileStore struct {
	dir  string
	opts graph.Options
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, opts graph.Options) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workflows dir: %w", err)
	}
	return &FileStore{dir: dir, opts: opts}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// path returns the first existing file for name.
func (s *FileStore) path(name string) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Exists reports whether a definition named name is stored.
func (s *FileStore) Exists(name string) bool {
	_, ok := s.path(name)
	return ok
}

// Load reads the named definition.
func (s *FileStore) Load(name string) (*types.WorkflowDefinition, error) {
	if !IsIdentifier(name) {
		return nil, serrors.DefinitionNotFound(name)
	}
	p, ok := s.path(name)
	if !ok {
		return nil, serrors.DefinitionNotFound(name)
	}
	def, err := ParseFile(p)
	if err != nil {
		return nil, err
	}
	if def.Name != name {
		return nil, serrors.InvalidField("", "name", fmt.Sprintf("%q does not match file name %s", def.Name, filepath.Base(p)))
	}
	return def, nil
}

// Save validates def and writes it atomically, replacing any stored version.
func (s *FileStore) Save(def *types.WorkflowDefinition) error {
	if _, err := Validate(def, s.opts); err != nil {
		return err
	}

	data, err := Marshal(def, FormatTOML)
	if err != nil {
		return fmt.Errorf("marshaling definition: %w", err)
	}

	mainPath := filepath.Join(s.dir, def.Name+".toml")
	tmpPath := mainPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return serrors.IOWriteError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, mainPath); err != nil {
		os.Remove(tmpPath)
		return serrors.IOWriteError(mainPath, err)
	}

	// Drop copies in other formats so Load sees the saved version.
	for _, ext := range Extensions[1:] {
		os.Remove(filepath.Join(s.dir, def.Name+ext))
	}
	return nil
}

// Delete removes every stored file for name.
func (s *FileStore) Delete(name string) error {
	if !IsIdentifier(name) {
		return serrors.DefinitionNotFound(name)
	}
	removed := false
	for _, ext := range Extensions {
		err := os.Remove(filepath.Join(s.dir, name+ext))
		if err == nil {
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return serrors.IOWriteError(filepath.Join(s.dir, name+ext), err)
		}
	}
	if !removed {
		return serrors.DefinitionNotFound(name)
	}
	return nil
}

// List returns summaries of every parseable definition, sorted by name.
// Files that fail to parse are skipped.
func (s *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if _, err := FormatFromPath(entry.Name()); err != nil {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if seen[name] {
			continue
		}

		def, err := s.Load(name)
		if err != nil {
			continue
		}
		seen[name] = true
		p, _ := s.path(name)
		out = append(out, Summary{
			Name:        def.Name,
			Description: def.Description,
			Steps:       len(def.Steps),
			Path:        p,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
