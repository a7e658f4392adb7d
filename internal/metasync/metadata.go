package metasync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableMetadata is one metadata document describing a warehouse table.
type TableMetadata struct {
	Table        string            `yaml:"table"`
	FriendlyName string            `yaml:"friendly_name"`
	Description  string            `yaml:"description"`
	Labels       map[string]string `yaml:"labels"`
}

// Validate checks the document carries enough to be applied.
func (m TableMetadata) Validate() error {
	if strings.TrimSpace(m.Table) == "" {
		return fmt.Errorf("metadata document missing table name")
	}
	return nil
}

// LoadDir walks a directory tree and parses every .yaml/.yml document found.
// Files are keyed by their declared table name; duplicate declarations are an
// error since last-writer-wins would silently drop metadata.
func LoadDir(dir string) ([]TableMetadata, error) {
	docs := make([]TableMetadata, 0)
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		doc, err := loadFile(path)
		if err != nil {
			return err
		}
		if prev, dup := seen[doc.Table]; dup {
			return fmt.Errorf("table %q declared in both %s and %s", doc.Table, prev, path)
		}
		seen[doc.Table] = path
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func loadFile(path string) (TableMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TableMetadata{}, err
	}

	var doc TableMetadata
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return TableMetadata{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return TableMetadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
