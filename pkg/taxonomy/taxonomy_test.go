package taxonomy

import (
	"errors"
	"reflect"
	"testing"

	"drivelogic-hq/reasoner/pkg/atom"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		classes map[string][]string
		lookup  string
		want    []string
		wantErr bool
	}{
		{
			name:    "class contains itself",
			classes: map[string][]string{"vehicle": {"vehicle", "car", "van"}},
			lookup:  "vehicle",
			want:    []string{"vehicle", "car", "van"},
		},
		{
			name:    "class term prepended when missing",
			classes: map[string][]string{"large_vehicle": {"bus", "truck"}},
			lookup:  "large_vehicle",
			want:    []string{"large_vehicle", "bus", "truck"},
		},
		{
			name:    "duplicates dropped",
			classes: map[string][]string{"vehicle": {"car", "car", "vehicle", "van"}},
			lookup:  "vehicle",
			want:    []string{"car", "vehicle", "van"},
		},
		{
			name:    "non-class term maps to itself",
			classes: map[string][]string{"vehicle": {"car"}},
			lookup:  "pedestrian",
			want:    []string{"pedestrian"},
		},
		{
			name:    "empty member list rejected",
			classes: map[string][]string{"vehicle": {}},
			wantErr: true,
		},
		{
			name:    "blank member rejected",
			classes: map[string][]string{"vehicle": {"car", ""}},
			wantErr: true,
		},
		{
			name:    "blank class rejected",
			classes: map[string][]string{"": {"car"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := New(tt.classes)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("New() error = %v, want *ConfigurationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if got := tax.Lookup(tt.lookup); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup(%q) = %v, want %v", tt.lookup, got, tt.want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	tax := MustNew(map[string][]string{
		"vulnerable_road_user": {"vulnerable_road_user", "cyclist", "pedestrian"},
		"vehicle":              {"vehicle", "car"},
	})

	tests := []struct {
		name  string
		input string
		want  []atom.Atom
	}{
		{
			name:  "no class terms",
			input: "ego, is, stopped",
			want:  []atom.Atom{"ego, is, stopped"},
		},
		{
			name:  "one class term",
			input: "ego, approaching, vulnerable_road_user",
			want: []atom.Atom{
				"ego, approaching, vulnerable_road_user",
				"ego, approaching, cyclist",
				"ego, approaching, pedestrian",
			},
		},
		{
			name:  "two class terms",
			input: "vehicle, overtaking, vulnerable_road_user",
			want: []atom.Atom{
				"vehicle, overtaking, vulnerable_road_user",
				"vehicle, overtaking, cyclist",
				"vehicle, overtaking, pedestrian",
				"car, overtaking, vulnerable_road_user",
				"car, overtaking, cyclist",
				"car, overtaking, pedestrian",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tax.Expand(atom.MustParse(tt.input))
			if err != nil {
				t.Fatalf("Expand() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpand_EmptyCandidates(t *testing.T) {
	// Built by hand to bypass New's validation.
	tax := &Taxonomy{classes: map[string][]string{"ghost": {}}}

	_, err := tax.Expand(atom.MustParse("ego, sees, ghost"))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expand() error = %v, want *ConfigurationError", err)
	}
	if cfgErr.Class != "ghost" {
		t.Errorf("ConfigurationError.Class = %q, want ghost", cfgErr.Class)
	}
}

func TestNilTaxonomyIsIdentity(t *testing.T) {
	var tax *Taxonomy
	got, err := tax.Expand("ego, is, stopped")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "ego, is, stopped" {
		t.Errorf("Expand() = %v", got)
	}
	if tax.IsClass("ego") {
		t.Error("nil taxonomy has no classes")
	}
}

func TestProduct(t *testing.T) {
	var got [][]int
	Product([][]int{{1, 2}, {3}, {4, 5}}, func(c []int) {
		got = append(got, append([]int(nil), c...))
	})
	want := [][]int{{1, 3, 4}, {1, 3, 5}, {2, 3, 4}, {2, 3, 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Product() = %v, want %v", got, want)
	}

	calls := 0
	Product([][]int{}, func(c []int) {
		calls++
		if len(c) != 0 {
			t.Errorf("expected empty tuple, got %v", c)
		}
	})
	if calls != 1 {
		t.Errorf("Product of no sets called fn %d times, want 1", calls)
	}

	calls = 0
	Product([][]int{{1}, {}}, func([]int) { calls++ })
	if calls != 0 {
		t.Errorf("Product with an empty set called fn %d times, want 0", calls)
	}
}

func TestDefault(t *testing.T) {
	tax := Default()
	want := []string{"large_vehicle", "road_user", "vehicle", "vulnerable_road_user"}
	if got := tax.Classes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Classes() = %v, want %v", got, want)
	}
	if n := len(tax.Lookup("road_user")); n != 9 {
		t.Errorf("road_user has %d members, want 9", n)
	}
}
