// Package filesystem reads scenario YAML files from a directory tree and
// watches them for changes.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is one raw scenario file, undecoded. Validation owns the parse so
// every syntax error lands in the same report.
type File struct {
	Path string
	Dir  string
	Data []byte
}

// Repository reads scenario files from a directory tree.
type Repository struct {
	rootDir string
}

// NewRepository creates a repository rooted at rootDir.
func NewRepository(rootDir string) (*Repository, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scenarios directory: %w", err)
	}
	return &Repository{rootDir: absRoot}, nil
}

// RootDir returns the absolute scenarios directory.
func (r *Repository) RootDir() string {
	return r.rootDir
}

// ReadAll walks the root directory and returns every .yaml/.yml file in
// walk order. A missing root directory yields an empty slice so a mock can
// run from the OpenAPI contract alone.
func (r *Repository) ReadAll() ([]File, error) {
	if _, err := os.Stat(r.rootDir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []File
	err := filepath.WalkDir(r.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, File{Path: path, Dir: filepath.Dir(path), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk scenarios directory: %w", err)
	}

	return files, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
