package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
	"github.com/NERVsystems/ecotripmcp/pkg/tools"
)

type fakeLookup struct {
	km  float64
	err error
}

func (f fakeLookup) LookupDistanceKm(context.Context, string, string) (float64, error) {
	return f.km, f.err
}

func newTestServer(t *testing.T, opts ...tools.CalculatorOption) *Server {
	t.Helper()
	estimator, err := emissions.NewEstimator(emissions.DefaultCatalog(), emissions.DefaultOffsets())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return NewServer(tools.NewCalculator(estimator, opts...), discardLogger())
}

func TestNewServerRegistersTools(t *testing.T) {
	s := newTestServer(t, tools.WithDistanceLookup(fakeLookup{km: 343.5}, distance.SourceGreatCircle))

	if s.Calculator().DistanceSource() != distance.SourceGreatCircle {
		t.Errorf("calculator source = %q", s.Calculator().DistanceSource())
	}

	send := func(method string, params any) map[string]any {
		t.Helper()
		raw, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
		resp := s.GetMCPServer().HandleMessage(context.Background(), raw)
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatal(err)
		}
		if out["error"] != nil {
			t.Fatalf("%s failed: %v", method, out["error"])
		}
		return out["result"].(map[string]any)
	}

	init := send("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
		"capabilities":    map[string]any{},
	})
	info := init["serverInfo"].(map[string]any)
	if info["name"] != ServerName {
		t.Errorf("server name = %v, want %s", info["name"], ServerName)
	}
	caps := init["capabilities"].(map[string]any)
	if caps["tools"] == nil || caps["prompts"] == nil {
		t.Errorf("expected tools and prompts capabilities, got %v", caps)
	}

	listed := send("tools/list", map[string]any{})
	if n := len(listed["tools"].([]any)); n != 4 {
		t.Errorf("expected 4 tools, got %d", n)
	}
}

func TestShutdownBeforeRunIsNoop(t *testing.T) {
	s := newTestServer(t)
	s.Shutdown()
	s.Shutdown()
}
