package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NERVsystems/ecotripmcp/pkg/geo"
)

const mockOSRMResponse = `{"code":"Ok","routes":[{"distance":465200,"duration":16200}],"waypoints":[]}`

func resetRouteCache() {
	initRouteCache()
	routeCache.Purge()
}

func newMockServer(body string) (*httptest.Server, *int, *string) {
	count := 0
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	return server, &count, &path
}

func newErrorServer(status int) (*httptest.Server, *int) {
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"code":"Error","message":"bad"}`))
	}))
	return server, &count
}

func testOptions(server *httptest.Server) OSRMOptions {
	options := DefaultOSRMOptions()
	options.BaseURL = server.URL
	options.Client = server.Client()
	options.RetryOptions.MaxAttempts = 1
	return options
}

var (
	paris  = geo.Location{Latitude: 48.8566, Longitude: 2.3522}
	london = geo.Location{Latitude: 51.5074, Longitude: -0.1278}
)

func TestGetRouteCache(t *testing.T) {
	server, count, path := newMockServer(mockOSRMResponse)
	defer server.Close()
	resetRouteCache()

	options := testOptions(server)
	ctx := context.Background()

	r1, err := GetRoute(ctx, paris, london, options)
	if err != nil {
		t.Fatal(err)
	}
	if r1.DistanceKm() != 465.2 {
		t.Errorf("expected 465.2 km, got %v", r1.DistanceKm())
	}
	if *count != 1 {
		t.Fatalf("expected 1 request, got %d", *count)
	}
	if !strings.HasPrefix(*path, "/route/v1/car/2.352200,48.856600;") {
		t.Errorf("expected lon,lat ordering in path, got %s", *path)
	}

	r2, err := GetRoute(ctx, paris, london, options)
	if err != nil {
		t.Fatal(err)
	}
	if *count != 1 {
		t.Fatalf("expected cache hit on second call, requests=%d", *count)
	}
	if r1 != r2 {
		t.Errorf("expected cached result")
	}

	options.Profile = "foot"
	if _, err := GetRoute(ctx, paris, london, options); err != nil {
		t.Fatal(err)
	}
	if *count != 2 {
		t.Fatalf("expected cache miss for different profile, requests=%d", *count)
	}
}

func TestGetRouteNon200(t *testing.T) {
	server, _ := newErrorServer(http.StatusInternalServerError)
	defer server.Close()
	resetRouteCache()

	_, err := GetRoute(context.Background(), paris, london, testOptions(server))
	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("expected *MCPError, got %T", err)
	}
	if mcpErr.Code != string(ErrInternalError) {
		t.Errorf("expected code %s, got %s", ErrInternalError, mcpErr.Code)
	}
}

func TestGetRouteDoesNotRetryClientErrors(t *testing.T) {
	server, count := newErrorServer(http.StatusBadRequest)
	defer server.Close()
	resetRouteCache()

	options := testOptions(server)
	options.RetryOptions.MaxAttempts = 3

	if _, err := GetRoute(context.Background(), paris, london, options); err == nil {
		t.Fatal("expected error")
	}
	if *count != 1 {
		t.Errorf("expected a single attempt for 400, got %d", *count)
	}
}

func TestGetRouteNoRoute(t *testing.T) {
	server, _, _ := newMockServer(`{"code":"Ok","routes":[]}`)
	defer server.Close()
	resetRouteCache()

	_, err := GetRoute(context.Background(), paris, london, testOptions(server))
	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Code != string(ErrNoResults) {
		t.Fatalf("expected NO_RESULTS, got %v", err)
	}
}
