package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/tools"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildCalculatorFixed(t *testing.T) {
	cfg, err := parse(t, []string{"--distance-source", "fixed", "--fixed-distance-km", "200", "--max-passengers", "3"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	calc, closeFn, err := buildCalculator(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if calc.DistanceSource() != distance.SourceFixed || calc.MaxPassengers() != 3 {
		t.Errorf("source=%s max=%d", calc.DistanceSource(), calc.MaxPassengers())
	}
	got, err := calc.Calculate(context.Background(), tools.TripInput{From: "Paris", To: "London", Mode: "plane"})
	if err != nil {
		t.Fatal(err)
	}
	// 200 km * 0.255
	if got.TotalCO2Display != "51.0" {
		t.Errorf("total = %s, want 51.0", got.TotalCO2Display)
	}
}

func TestBuildCalculatorCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	catalog := `modes:
  - id: ferry
    label: Ferry
    emission_factor_kg_per_km: 0.115
  - id: bike
    label: Bicycle
    emission_factor_kg_per_km: 0
offsets:
  tree_absorption_kg_per_year: 20
  cost_per_kg: 0.1
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := parse(t, []string{"--distance-source", "fixed", "--catalog", path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	calc, closeFn, err := buildCalculator(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if diff := cmp.Diff([]string{"ferry", "bike"}, calc.Estimator().Catalog().IDs()); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}

	cfg.catalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, _, err := buildCalculator(cfg, quietLogger()); err == nil {
		t.Error("expected an error for a missing catalog file")
	}
}

func TestBuildCalculatorNetworkSource(t *testing.T) {
	cfg, err := parse(t, []string{"--distance-source", "road", "--distance-cache-size", "8"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	calc, closeFn, err := buildCalculator(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if calc.DistanceSource() != distance.SourceRoad {
		t.Errorf("source = %s", calc.DistanceSource())
	}
}

func TestRegistrationConfig(t *testing.T) {
	cfg, err := parse(t, []string{"--distance-source", "fixed", "--enable-http", "--http-addr", ":7100", "--internal-url", "http://ecotrip:7100/"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	calc, closeFn, err := buildCalculator(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	reg := registrationConfig(cfg, calc, quietLogger())
	if reg.ServiceURL != "http://localhost:7100" || reg.InternalHealthURL != "http://ecotrip:7100/health" {
		t.Errorf("unexpected URLs: %+v", reg)
	}
	if diff := cmp.Diff([]string{"carbon-estimation", "distance-lookup"}, reg.Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
	if len(reg.Tools) != 4 {
		t.Errorf("expected 4 tools, got %v", reg.Tools)
	}
}

func TestGenerateClientConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.WriteFile("claude.json", []byte(`{"mcpServers":{"other":{"command":"x"}},"theme":"dark"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := generateClientConfig("claude.json", true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile("claude.json")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		MCPServers map[string]map[string]any `json:"mcpServers"`
		Theme      string                    `json:"theme"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Theme != "dark" || got.MCPServers["other"] == nil || got.MCPServers["ecotripmcp"]["command"] == "" {
		t.Errorf("merge lost data: %s", data)
	}

	for _, bad := range []string{"", "config.yaml", "../escape.json", "/tmp/abs.json"} {
		if err := generateClientConfig(bad, false); err == nil {
			t.Errorf("generateClientConfig(%q) should fail", bad)
		}
	}
}
