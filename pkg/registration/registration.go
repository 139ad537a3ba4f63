// Package registration announces the server to a service registry with
// periodic heartbeats. It is optional and never blocks serving: a missing
// registry only produces debug logs.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
)

// DefaultHeartbeatInterval is the default interval between heartbeats.
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultTimeout is the default timeout for HTTP requests.
const DefaultTimeout = 5 * time.Second

// Capabilities advertised by ecotripmcp.
const (
	CapabilityCarbonEstimation = "carbon-estimation"
	CapabilityDistanceLookup   = "distance-lookup"
)

// DefaultCapabilities lists every capability the server provides.
func DefaultCapabilities() []string {
	return []string{CapabilityCarbonEstimation, CapabilityDistanceLookup}
}

// Config holds the configuration for service registration.
type Config struct {
	Enabled     bool
	RegistryURL string // e.g. "http://registry:7083"

	ServiceName string
	ServiceType string // defaults to "mcp"
	ServiceURL  string
	HealthURL   string // defaults to ServiceURL + "/health"

	// Internal URLs for container networks; optional.
	InternalURL       string
	InternalHealthURL string

	Version      string
	Capabilities []string
	Tools        []string
	Metadata     map[string]any

	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

// Validate reports configuration that would make every heartbeat fail.
// A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RegistryURL == "" {
		return fmt.Errorf("registry URL is required when registration is enabled")
	}
	if u, err := url.Parse(c.RegistryURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid registry URL %q", c.RegistryURL)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.ServiceURL == "" {
		return fmt.Errorf("service URL is required")
	}
	return nil
}

// RegistrationRequest is the request format for the registry API.
type RegistrationRequest struct {
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	URL            string         `json:"url"`
	HealthURL      string         `json:"health_url"`
	InternalURL    string         `json:"internal_url,omitempty"`
	InternalHealth string         `json:"internal_health_url,omitempty"`
	Version        string         `json:"version"`
	Capabilities   []string       `json:"capabilities,omitempty"`
	Tools          []string       `json:"tools,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// RegistrationResponse is the response from the registry.
type RegistrationResponse struct {
	Status          string    `json:"status"`
	Name            string    `json:"name"`
	TTLSeconds      int       `json:"ttl_seconds"`
	NextHeartbeatBy time.Time `json:"next_heartbeat_by"`
}

// Client registers the service and keeps the registration alive.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.RWMutex
	registered bool
}

// NewClient creates a new registration client.
// If cfg.Enabled is false, the client will be a no-op.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ServiceType == "" {
		cfg.ServiceType = "mcp"
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = DefaultCapabilities()
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")
	if cfg.HealthURL == "" && cfg.ServiceURL != "" {
		cfg.HealthURL = strings.TrimRight(cfg.ServiceURL, "/") + "/health"
	}

	return &Client{
		cfg:        cfg,
		logger:     logger.With("component", "registration"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Start begins the registration and heartbeat loop without blocking.
func (c *Client) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		c.logger.Info("service registration disabled")
		return
	}
	if err := c.cfg.Validate(); err != nil {
		c.logger.Warn("service registration misconfigured, not starting", "error", err)
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.heartbeatLoop(ctx)
}

// Stop deregisters and waits for the heartbeat loop to exit.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}

	c.cancel()
	c.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	c.deregister(ctx)
}

// IsRegistered returns whether the service is currently registered.
func (c *Client) IsRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	c.register(ctx)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.register(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) request() RegistrationRequest {
	return RegistrationRequest{
		Name:           c.cfg.ServiceName,
		Type:           c.cfg.ServiceType,
		URL:            c.cfg.ServiceURL,
		HealthURL:      c.cfg.HealthURL,
		InternalURL:    c.cfg.InternalURL,
		InternalHealth: c.cfg.InternalHealthURL,
		Version:        c.cfg.Version,
		Capabilities:   c.cfg.Capabilities,
		Tools:          c.cfg.Tools,
		Metadata:       c.cfg.Metadata,
	}
}

// register sends one registration or heartbeat.
func (c *Client) register(ctx context.Context) {
	start := time.Now()
	ok := c.doRegister(ctx)
	monitoring.RecordExternalServiceRequest("registry", "register", time.Since(start), ok)
	c.setRegistered(ok)
}

func (c *Client) doRegister(ctx context.Context) bool {
	body, err := json.Marshal(c.request())
	if err != nil {
		c.logger.Error("failed to marshal registration request", "error", err)
		return false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create registration request", "error", err)
		return false
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("registration failed (registry may be unavailable)", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("registration failed", "status", resp.StatusCode, "body", string(bodyBytes))
		return false
	}

	var regResp RegistrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		c.logger.Warn("failed to decode registration response", "error", err)
		return false
	}

	if !c.IsRegistered() {
		c.logger.Info("registered with service registry",
			"name", c.cfg.ServiceName,
			"ttl_seconds", regResp.TTLSeconds)
	}
	return true
}

func (c *Client) deregister(ctx context.Context) {
	if !c.IsRegistered() {
		return
	}
	defer c.setRegistered(false)

	endpoint := fmt.Sprintf("%s/api/register/%s", c.cfg.RegistryURL, url.PathEscape(c.cfg.ServiceName))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		c.logger.Debug("failed to create deregistration request", "error", err)
		return
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordExternalServiceRequest("registry", "deregister", time.Since(start), false)
		c.logger.Debug("deregistration failed (registry may be unavailable)", "error", err)
		return
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
	monitoring.RecordExternalServiceRequest("registry", "deregister", time.Since(start), ok)
	if ok {
		c.logger.Info("deregistered from service registry", "name", c.cfg.ServiceName)
	}
}

func (c *Client) setRegistered(registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = registered
}
