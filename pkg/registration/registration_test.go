package registration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeRegistry struct {
	mu       sync.Mutex
	requests []RegistrationRequest
	deleted  []string
	status   int
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var req RegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.requests = append(f.requests, req)
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		_ = json.NewEncoder(w).Encode(RegistrationResponse{Status: "ok", Name: req.Name, TTLSeconds: 90})
	case http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
	}
}

func (f *fakeRegistry) snapshot() ([]RegistrationRequest, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RegistrationRequest(nil), f.requests...), append([]string(nil), f.deleted...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Enabled: true, RegistryURL: "http://registry:7083", ServiceName: "ecotripmcp", ServiceURL: "http://ecotrip:7082"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"disabled ignores fields", func(c *Config) { *c = Config{} }, false},
		{"missing registry", func(c *Config) { c.RegistryURL = "" }, true},
		{"relative registry", func(c *Config) { c.RegistryURL = "registry:7083" }, true},
		{"missing name", func(c *Config) { c.ServiceName = "" }, true},
		{"missing service url", func(c *Config) { c.ServiceURL = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{RegistryURL: "http://registry/", ServiceURL: "http://ecotrip:7082/"}, quietLogger())

	if c.cfg.ServiceType != "mcp" || c.cfg.HeartbeatInterval != DefaultHeartbeatInterval || c.cfg.Timeout != DefaultTimeout {
		t.Errorf("unexpected defaults: %+v", c.cfg)
	}
	if c.cfg.RegistryURL != "http://registry" || c.cfg.HealthURL != "http://ecotrip:7082/health" {
		t.Errorf("unexpected URLs: registry=%q health=%q", c.cfg.RegistryURL, c.cfg.HealthURL)
	}
	if diff := cmp.Diff([]string{"carbon-estimation", "distance-lookup"}, c.cfg.Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient(Config{Enabled: false}, quietLogger())
	c.Start(context.Background())
	c.Stop()
	if c.IsRegistered() {
		t.Error("disabled client should never register")
	}
}

func TestHeartbeatAndDeregister(t *testing.T) {
	registry := &fakeRegistry{}
	srv := httptest.NewServer(registry)
	defer srv.Close()

	c := NewClient(Config{
		Enabled:           true,
		RegistryURL:       srv.URL,
		ServiceName:       "ecotripmcp",
		ServiceURL:        "http://ecotrip:7082",
		Version:           "test",
		Tools:             []string{"calculate_carbon_footprint"},
		HeartbeatInterval: 10 * time.Millisecond,
	}, quietLogger())
	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		reqs, _ := registry.snapshot()
		if len(reqs) >= 2 && c.IsRegistered() {
			break
		}
		if time.Now().After(deadline) {
			c.Stop()
			t.Fatalf("expected at least two heartbeats, got %d", len(reqs))
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	reqs, deleted := registry.snapshot()
	want := RegistrationRequest{
		Name:         "ecotripmcp",
		Type:         "mcp",
		URL:          "http://ecotrip:7082",
		HealthURL:    "http://ecotrip:7082/health",
		Version:      "test",
		Capabilities: []string{"carbon-estimation", "distance-lookup"},
		Tools:        []string{"calculate_carbon_footprint"},
	}
	if diff := cmp.Diff(want, reqs[0]); diff != "" {
		t.Errorf("registration payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/api/register/ecotripmcp"}, deleted); diff != "" {
		t.Errorf("deregistration mismatch (-want +got):\n%s", diff)
	}
	if c.IsRegistered() {
		t.Error("client should report unregistered after Stop")
	}
}

func TestRegistryRejectsHeartbeat(t *testing.T) {
	registry := &fakeRegistry{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(registry)
	defer srv.Close()

	c := NewClient(Config{Enabled: true, RegistryURL: srv.URL, ServiceName: "ecotripmcp", ServiceURL: "http://x"}, quietLogger())
	c.register(context.Background())
	if c.IsRegistered() {
		t.Error("a rejected heartbeat must not mark the client registered")
	}

	// nothing to deregister
	c.deregister(context.Background())
	if _, deleted := registry.snapshot(); len(deleted) != 0 {
		t.Errorf("unexpected deregistration: %v", deleted)
	}
}
