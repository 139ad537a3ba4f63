package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// waitForEndpoint polls the given URL until it returns 200 OK or timeout
func waitForEndpoint(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) // #nosec G107 -- test helper
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("endpoint %s did not become ready", url)
}

func TestServerMainHTTPOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the server binary")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	binPath := filepath.Join(t.TempDir(), "ecotripmcp-test")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runCmd := exec.CommandContext(ctx, binPath,
		"--enable-http",
		"--http-only",
		"--http-addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--distance-source", "fixed",
		"--enable-monitoring=false",
	)
	if err := runCmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		_ = runCmd.Process.Signal(syscall.SIGTERM)
		_ = runCmd.Wait()
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForEndpoint(base+"/health", 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	resp, err := http.Get(base + "/api/estimate?from=Paris&to=London&mode=plane") // #nosec G107 -- test request
	if err != nil {
		t.Fatalf("GET /api/estimate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Total string `json:"total_co2_display"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != "127.5" {
		t.Errorf("total = %q, want 127.5", body.Total)
	}
}
