package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/tagexpr/pkg/store"
)

// MaxSelectorFileSize is the largest selector file LoadDir reads, in bytes.
const MaxSelectorFileSize = 64 * 1024

// selectorFile is the content of a selector file. A file may also hold
// just the expression as a YAML string.
type selectorFile struct {
	Expression  string `yaml:"expression"`
	Description string `yaml:"description"`
}

// LoadDir loads every .yaml and .yml file in dir as a selector. The file
// name (sans extension, lower-cased) becomes the selector name. Files that
// cannot be loaded are logged and skipped. It returns the number of
// selectors loaded.
func (s *Server) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading selectors directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()
		ext := filepath.Ext(file)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		name := store.NameFromFile(file)
		if name != strings.TrimSuffix(file, ext) {
			s.logger.Warn("normalized selector name", slog.String("file", file), slog.String("selector", name))
		}
		if err := store.ValidateName(name); err != nil {
			s.logger.Warn("skipping selector file", slog.String("file", file), slog.String("error", err.Error()))
			continue
		}

		def, err := readSelectorFile(filepath.Join(dir, file))
		if err != nil {
			s.logger.Warn("could not read selector file", slog.String("file", file), slog.String("error", err.Error()))
			continue
		}

		if _, err := s.parse(context.Background(), "file:"+file, def.Expression); err != nil {
			continue
		}

		sel, err := s.store.Create(name, def.Expression, def.Description)
		if err != nil {
			s.logger.Warn("could not store selector", slog.String("file", file), slog.String("error", err.Error()))
			continue
		}
		loaded++
		s.logger.Info("loaded selector",
			slog.String("selector", sel.Name),
			slog.String("expression", sel.Expression),
			slog.String("file", file))
	}

	s.logger.Info("loaded selectors", slog.Int("count", loaded), slog.String("dir", dir))
	return loaded, nil
}

func readSelectorFile(path string) (*selectorFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSelectorFileSize {
		return nil, fmt.Errorf("size %d exceeds maximum %d bytes", len(data), MaxSelectorFileSize)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty selector file")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.ScalarNode:
		return &selectorFile{Expression: root.Value}, nil
	case yaml.MappingNode:
		var def selectorFile
		if err := root.Decode(&def); err != nil {
			return nil, fmt.Errorf("invalid selector file: %w", err)
		}
		return &def, nil
	default:
		return nil, fmt.Errorf("selector file must be a mapping or a string")
	}
}
