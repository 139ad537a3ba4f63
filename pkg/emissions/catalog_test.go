package emissions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCatalogValidate(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
		wantErr bool
	}{
		{"default", DefaultCatalog(), false},
		{"empty", Catalog{}, true},
		{"empty id", Catalog{{ID: "", Label: "Nothing", FactorKgPerKm: 0.1}}, true},
		{"duplicate id", Catalog{{ID: "car", FactorKgPerKm: 0.1}, {ID: "car", FactorKgPerKm: 0.2}}, true},
		{"negative factor", Catalog{{ID: "car", FactorKgPerKm: -0.1}}, true},
		{"zero factor", Catalog{{ID: "bike", FactorKgPerKm: 0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCatalog) {
					t.Errorf("error = %v, want ErrInvalidCatalog", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseCatalog(t *testing.T) {
	doc := `
modes:
  - id: ferry
    label: Ferry
    emission_factor_kg_per_km: 0.115
  - id: train
    label: Train
    emission_factor_kg_per_km: 0.041
offsets:
  tree_absorption_kg_per_year: 25
  cost_per_kg: 0.02
`
	catalog, offsets, err := ParseCatalog(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Catalog{
		{ID: "ferry", Label: "Ferry", FactorKgPerKm: 0.115},
		{ID: "train", Label: "Train", FactorKgPerKm: 0.041},
	}
	if diff := cmp.Diff(want, catalog); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(OffsetConstants{TreeAbsorptionKgPerYear: 25, CostPerKg: 0.02}, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCatalogDefaultsOffsets(t *testing.T) {
	doc := "modes:\n  - {id: car, label: Car, emission_factor_kg_per_km: 0.171}\n"

	_, offsets, err := ParseCatalog(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if offsets != DefaultOffsets() {
		t.Errorf("offsets = %+v, want defaults", offsets)
	}
}

func TestParseCatalogRejects(t *testing.T) {
	tests := map[string]string{
		"empty document":  "",
		"unknown field":   "modes:\n  - {id: car, label: Car, factor: 0.171}\n",
		"no modes":        "modes: []\n",
		"duplicate ids":   "modes:\n  - {id: car, emission_factor_kg_per_km: 0.1}\n  - {id: car, emission_factor_kg_per_km: 0.2}\n",
		"zero tree rate":  "modes:\n  - {id: car, emission_factor_kg_per_km: 0.1}\noffsets: {tree_absorption_kg_per_year: 0, cost_per_kg: 0.5}\n",
		"malformed yaml":  "modes: [\n",
		"negative factor": "modes:\n  - {id: car, emission_factor_kg_per_km: -1}\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseCatalog(strings.NewReader(doc)); !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modes.yaml")
	if err := os.WriteFile(path, []byte("modes:\n  - {id: bus, label: Bus, emission_factor_kg_per_km: 0.089}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	catalog, _, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids := catalog.IDs(); len(ids) != 1 || ids[0] != "bus" {
		t.Errorf("IDs() = %v, want [bus]", ids)
	}

	if _, _, err := LoadCatalogFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
