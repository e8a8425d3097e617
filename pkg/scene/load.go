package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a scene file mapping scene ids to descriptions. The file is
// JSON when it has a .json extension and YAML otherwise. Scene ids are
// returned in sorted order.
func LoadFile(path string) (map[string]Description, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	yamlDoc := !strings.EqualFold(filepath.Ext(path), ".json")
	scenes, ids, err := Parse(data, yamlDoc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse scene file %q: %w", path, err)
	}
	return scenes, ids, nil
}

// Parse decodes a scene document, JSON unless yamlDoc is set.
func Parse(data []byte, yamlDoc bool) (map[string]Description, []string, error) {
	scenes := make(map[string]Description)
	if len(bytes.TrimSpace(data)) > 0 {
		var err error
		if yamlDoc {
			err = yaml.Unmarshal(data, &scenes)
		} else {
			err = json.Unmarshal(data, &scenes)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	ids := make([]string, 0, len(scenes))
	for id := range scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return scenes, ids, nil
}

// LoadSynonyms reads an intent → actions mapping, JSON or YAML by
// extension like LoadFile. An empty path yields an empty mapping.
func LoadSynonyms(path string) (map[string][]string, error) {
	synonyms := make(map[string][]string)
	if path == "" {
		return synonyms, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return synonyms, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &synonyms)
	} else {
		err = yaml.Unmarshal(data, &synonyms)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse synonyms file %q: %w", path, err)
	}
	return synonyms, nil
}
