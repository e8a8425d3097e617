package rulebase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"drivelogic-hq/reasoner/pkg/taxonomy"
)

// Format is the serialization of a rule or taxonomy file.
type Format string

const (
	// FormatJSON is a JSON document.
	FormatJSON Format = "json"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension. Anything that is
// not .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadRules reads and validates a rule base file.
func LoadRules(path string) (*RuleBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	rb, err := ParseRules(data, FormatFromPath(path))
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	rb.Source = path

	return rb, nil
}

// ParseRules decodes and validates a rule base. The document is a sequence
// of {id, action, conditions} records.
func ParseRules(data []byte, format Format) (*RuleBase, error) {
	var rules []Rule
	if err := decode(data, format, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rb := &RuleBase{Rules: rules}
	if err := Validate(rb); err != nil {
		return nil, err
	}
	return rb, nil
}

// LoadTaxonomy reads a class → members mapping and builds a taxonomy.
func LoadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	tax, err := ParseTaxonomy(data, FormatFromPath(path))
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return tax, nil
}

// ParseTaxonomy decodes a class → members mapping.
func ParseTaxonomy(data []byte, format Format) (*taxonomy.Taxonomy, error) {
	var classes map[string][]string
	if err := decode(data, format, &classes); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	return taxonomy.New(classes)
}

func decode(data []byte, format Format, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, out)
	case FormatYAML:
		return yaml.Unmarshal(data, out)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
