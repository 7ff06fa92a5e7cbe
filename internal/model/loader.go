package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pfbio/pfbex/internal/domain"
)

// Load reads table definitions from a model file, or from every model file
// in a directory, in name order. JSON and YAML are accepted, keyed by file
// extension. A file holds either a bare list of tables or a document with a
// tables key. Table names must be unique across the whole model.
func Load(path string) ([]domain.TableDefinition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading model path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = modelFiles(path)
		if err != nil {
			return nil, err
		}
	}

	var tables []domain.TableDefinition
	seen := make(map[string]string)
	for _, file := range files {
		loaded, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		for _, table := range loaded {
			if previous, ok := seen[table.Name]; ok {
				if previous == file {
					return nil, fmt.Errorf("table %s defined more than once in %s", table.Name, file)
				}
				return nil, fmt.Errorf("table %s defined in both %s and %s", table.Name, previous, file)
			}
			seen[table.Name] = file
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func modelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading model directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no model files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path string) ([]domain.TableDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	var tables []domain.TableDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		tables, err = decodeTables(data, json.Unmarshal)
	case ".yaml", ".yml":
		tables, err = decodeTables(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("model file %s has an unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	return tables, nil
}

func decodeTables(data []byte, unmarshal func([]byte, any) error) ([]domain.TableDefinition, error) {
	var list []domain.TableDefinition
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Tables []domain.TableDefinition `json:"tables" yaml:"tables"`
	}
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Tables, nil
}
