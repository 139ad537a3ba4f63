package osm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
)

func nominatimStub(t *testing.T, body string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestGeocode(t *testing.T) {
	server, hits := nominatimStub(t, `[{"lat":"48.8566","lon":"2.3522","display_name":"Paris, France"}]`, http.StatusOK)

	g := NewGeocoder(WithBaseURL(server.URL + "/"))
	defer g.Close()

	place, err := g.Geocode(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if place.Name != "Paris, France" || place.Location.Latitude != 48.8566 || place.Location.Longitude != 2.3522 {
		t.Errorf("unexpected place %+v", place)
	}

	// Normalised queries share a cache entry
	if _, err := g.Geocode(context.Background(), "  PARIS "); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected 1 upstream request, got %d", n)
	}
}

func TestGeocodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		wantCode core.ErrorCode
	}{
		{"no results", `[]`, http.StatusOK, core.ErrNoResults},
		{"bad json", `{`, http.StatusOK, core.ErrParseError},
		{"bad coordinates", `[{"lat":"north","lon":"2"}]`, http.StatusOK, core.ErrParseError},
		{"rate limited", `[]`, http.StatusTooManyRequests, core.ErrRateLimit},
		{"unavailable", `[]`, http.StatusServiceUnavailable, core.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := nominatimStub(t, tt.body, tt.status)
			g := NewGeocoder(WithBaseURL(server.URL))
			defer g.Close()

			_, err := g.Geocode(context.Background(), "Atlantis")
			var mcpErr *core.MCPError
			if !errors.As(err, &mcpErr) {
				t.Fatalf("expected *core.MCPError, got %T (%v)", err, err)
			}
			if mcpErr.Code != string(tt.wantCode) {
				t.Errorf("code = %s, want %s", mcpErr.Code, tt.wantCode)
			}
		})
	}
}

func TestGeocodeEmptyQuery(t *testing.T) {
	g := NewGeocoder(WithBaseURL("http://127.0.0.1:1"))
	defer g.Close()

	if _, err := g.Geocode(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestCheckNominatimHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := CheckNominatimHealth(context.Background(), server.URL); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
	if err := CheckOSRMHealth(context.Background(), server.URL); err != nil {
		t.Errorf("404 from OSRM still means reachable, got %v", err)
	}
	if err := CheckNominatimHealth(context.Background(), "http://127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable service")
	}
}
