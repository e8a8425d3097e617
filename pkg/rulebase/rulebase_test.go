package rulebase

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseRules_JSON(t *testing.T) {
	data := []byte(`[
		{"id": 58, "action": "reduce_speed", "conditions": ["ego, approaching, vulnerable_road_user"]},
		{"id": "70", "action": "maintain_speed", "conditions": []},
		{"id": 3, "UKRuleid": "Rule 3", "action": "stop", "conditions": ["traffic_light, is, red", "ego, at, junction"]}
	]`)

	rb, err := ParseRules(data, FormatJSON)
	if err != nil {
		t.Fatalf("ParseRules() error: %v", err)
	}
	if got, want := rb.IDs(), []int{58, 70, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if rb.Rules[2].Action != "stop" || len(rb.Rules[2].Conditions) != 2 {
		t.Errorf("unexpected rule: %+v", rb.Rules[2])
	}
	if !rb.Contains(70) || rb.Contains(71) {
		t.Error("Contains() mismatch")
	}
}

func TestParseRules_YAML(t *testing.T) {
	data := []byte(`
- id: 1
  action: stop
  conditions:
    - traffic_light, is, red
- id: "2"
  action: proceed
  conditions:
    - traffic_light, is, green
`)

	rb, err := ParseRules(data, FormatYAML)
	if err != nil {
		t.Fatalf("ParseRules() error: %v", err)
	}
	if got, want := rb.IDs(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantProblems int
	}{
		{
			name:         "duplicate id",
			data:         `[{"id": 1, "action": "stop", "conditions": []}, {"id": 1, "action": "go", "conditions": []}]`,
			wantProblems: 1,
		},
		{
			name:         "empty action and bad condition",
			data:         `[{"id": 4, "action": " ", "conditions": ["ego,,red"]}]`,
			wantProblems: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.data), FormatJSON)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ParseRules() error = %v, want *ValidationError", err)
			}
			if len(vErr.Problems) != tt.wantProblems {
				t.Errorf("got %d problems, want %d: %v", len(vErr.Problems), tt.wantProblems, vErr)
			}
		})
	}
}

func TestParseRules_NonIntegerID(t *testing.T) {
	_, err := ParseRules([]byte(`[{"id": "abc", "action": "stop", "conditions": []}]`), FormatJSON)
	if err == nil || !strings.Contains(err.Error(), "not an integer") {
		t.Errorf("expected integer id error, got %v", err)
	}
}

func TestParseRules_Empty(t *testing.T) {
	rb, err := ParseRules([]byte("  \n"), FormatYAML)
	if err != nil {
		t.Fatalf("ParseRules() error: %v", err)
	}
	if len(rb.Rules) != 0 {
		t.Errorf("expected empty rule base, got %d rules", len(rb.Rules))
	}
}

func TestLoadRulesAndTaxonomy(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.json")
	taxPath := filepath.Join(dir, "taxonomy.yaml")

	if err := os.WriteFile(rulesPath, []byte(`[{"id": 58, "action": "reduce_speed", "conditions": ["ego, approaching, vulnerable_road_user"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(taxPath, []byte("vulnerable_road_user: [cyclist, pedestrian]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rb, err := LoadRules(rulesPath)
	if err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if rb.Source != rulesPath {
		t.Errorf("Source = %q, want %q", rb.Source, rulesPath)
	}

	tax, err := LoadTaxonomy(taxPath)
	if err != nil {
		t.Fatalf("LoadTaxonomy() error: %v", err)
	}
	want := []string{"vulnerable_road_user", "cyclist", "pedestrian"}
	if got := tax.Lookup("vulnerable_road_user"); !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup() = %v, want %v", got, want)
	}

	_, err = LoadRules(filepath.Join(dir, "missing.json"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("expected *LoadError for missing file, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("rules.JSON") != FormatJSON {
		t.Error("expected JSON for .JSON")
	}
	if FormatFromPath("rules.yml") != FormatYAML {
		t.Error("expected YAML for .yml")
	}
}
