package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string        `json:"addr"`             // HTTP server address (e.g., ":7082")
	BaseURL        string        `json:"base_url"`         // Base URL for service discovery
	AuthType       core.AuthType `json:"auth_type"`        // none, bearer or basic
	AuthToken      string        `json:"auth_token"`       // Bearer token or user:password
	SSEEndpoint    string        `json:"sse_endpoint"`     // SSE endpoint path (default: "/sse")
	MsgEndpoint    string        `json:"msg_endpoint"`     // Message endpoint path (default: "/message")
	EnableAPI      bool          `json:"enable_api"`       // Serve the JSON API under /api/
	RateLimit      float64       `json:"rate_limit"`       // Requests per second per IP (0 = disabled)
	RateBurst      int           `json:"rate_burst"`       // Burst size for rate limiter
	MaxRequestSize int64         `json:"max_request_size"` // Maximum request body size in bytes
	MaxHeaderBytes int           `json:"max_header_bytes"` // Maximum header size in bytes
	TLSCertFile    string        `json:"tls_cert_file"`
	TLSKeyFile     string        `json:"tls_key_file"`
	ForceHTTPS     bool          `json:"force_https"` // Redirect plain HTTP requests to HTTPS
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       core.AuthNone,
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		EnableAPI:      true,
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 10 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// HTTPTransport implements HTTP+SSE dual transport for MCP plus the JSON API.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	api           *APIHandler
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	sseSessions   atomic.Int64
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport serving srv. Shutdown must be
// called to release the rate limiter even if Start never ran.
func NewHTTPTransport(srv *Server, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AuthType == "" {
		config.AuthType = core.AuthNone
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = 10 << 20
	}

	if err := core.ValidateAuthToken(config.AuthType, config.AuthToken); err != nil {
		logger.Warn("weak authentication token detected", "auth_type", config.AuthType, "error", err.Error())
	}

	sseServer := mcpserver.NewSSEServer(
		srv.GetMCPServer(),
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		mcpserver.WithBaseURL(config.BaseURL),
	)

	transport := &HTTPTransport{
		config:    config,
		logger:    logger,
		sseServer: sseServer,
		mux:       http.NewServeMux(),
	}
	if config.EnableAPI {
		transport.api = NewAPIHandler(srv.Calculator(), logger)
	}
	if config.RateLimit > 0 {
		transport.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}

	transport.setupRoutes()
	return transport
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
	t.reportTransport()
}

// reportTransport assumes the caller holds mu.
func (t *HTTPTransport) reportTransport() {
	if t.healthChecker == nil {
		return
	}
	t.healthChecker.SetTransport(monitoring.TransportInfo{
		Type:           "http",
		HTTPAddr:       t.config.Addr,
		ActiveSessions: int(t.sseSessions.Load()),
	})
}

// ActiveSessions reports the number of open SSE streams.
func (t *HTTPTransport) ActiveSessions() int {
	return int(t.sseSessions.Load())
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleServiceDiscovery))

	// Probes stay unauthenticated
	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/ready", t.handleReady)
	t.mux.HandleFunc("/live", t.handleLive)

	sse := t.trackSessions(t.sseServer.SSEHandler())
	msg := t.sseServer.MessageHandler()
	t.mux.Handle(t.config.SSEEndpoint, t.protect(sse))
	t.mux.Handle(t.config.SSEEndpoint+"/", t.protect(sse))
	t.mux.Handle(t.config.MsgEndpoint, t.protect(msg))
	t.mux.Handle(t.config.MsgEndpoint+"/", t.protect(msg))

	if t.api != nil {
		t.mux.Handle("/api/", t.protect(t.api))
	}
}

// protect applies HTTPS enforcement, authentication and rate limiting.
func (t *HTTPTransport) protect(next http.Handler) http.Handler {
	h := t.authMiddleware(next)
	if t.rateLimiter != nil {
		h = t.rateLimiter.Middleware(h)
	}
	return t.httpsEnforcement(h.ServeHTTP)
}

func (t *HTTPTransport) trackSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.sessionDelta(1)
		defer t.sessionDelta(-1)
		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) sessionDelta(d int64) {
	n := t.sseSessions.Add(d)
	monitoring.UpdateActiveConnections("http", "sse", int(n))

	t.mu.RLock()
	t.reportTransport()
	t.mu.RUnlock()
}

// httpsEnforcement redirects HTTP requests to HTTPS if ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			httpsURL := "https://" + r.Host + r.RequestURI
			t.logger.Info("redirecting HTTP request to HTTPS",
				"client_ip", getIP(r),
				"redirect_url", httpsURL)
			http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
			return
		}
		next(w, r)
	}
}

// authMiddleware checks credentials for MCP and API endpoints.
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := core.AuthenticateRequest(r, t.config.AuthType, t.config.AuthToken)
		if !result.Authorized {
			t.logger.Warn("authentication failed",
				"remote_addr", getIP(r),
				"path", r.URL.Path,
				"auth_type", t.config.AuthType,
				"error", result.Error,
				"auth_duration", result.Duration)
			monitoring.RecordError("http", "auth")

			if t.config.AuthType == core.AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="ecotripmcp"`)
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			t.writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleServiceDiscovery lists the endpoints an MCP client needs.
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	endpoints := map[string]string{
		"sse":     baseURL + t.config.SSEEndpoint,
		"message": baseURL + t.config.MsgEndpoint,
	}
	if t.api != nil {
		endpoints["modes"] = baseURL + "/api/modes"
		endpoints["estimate"] = baseURL + "/api/estimate"
		endpoints["distance"] = baseURL + "/api/distance"
	}

	discovery := map[string]any{
		"service":   ServerName,
		"transport": "HTTP+SSE",
		"endpoints": endpoints,
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != core.AuthNone,
			"type":     t.config.AuthType,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(discovery); err != nil {
		t.logger.Error("failed to encode service discovery response", "error", err)
	}
}

func (t *HTTPTransport) probe(w http.ResponseWriter, r *http.Request, pick func(*monitoring.HealthChecker) http.HandlerFunc, fallback map[string]any) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		pick(hc)(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(fallback); err != nil {
		t.logger.Error("failed to encode probe response", "path", r.URL.Path, "error", err)
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.probe(w, r, (*monitoring.HealthChecker).HealthHandler, map[string]any{"status": "ok"})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	t.probe(w, r, (*monitoring.HealthChecker).ReadinessHandler, map[string]any{"ready": true, "status": "ok"})
}

func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	t.probe(w, r, (*monitoring.HealthChecker).LivenessHandler, map[string]any{"alive": true})
}

// writeJSONRPCError writes a JSON-RPC error response
func (t *HTTPTransport) writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	response := map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		t.logger.Error("failed to encode JSON-RPC error", "error", err)
	}
}

// Handler returns the routed mux wrapped in the transport middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = SecurityHeaders(handler)
	return RequestSizeLimiter(t.config.MaxRequestSize)(handler)
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	t.reportTransport()

	tlsEnabled := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"api", t.api != nil,
		"auth_type", t.config.AuthType,
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tlsEnabled,
		"force_https", t.config.ForceHTTPS)
	t.mu.Unlock()

	if tlsEnabled {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	if t.config.ForceHTTPS {
		t.logger.Warn("HTTPS enforcement enabled but no TLS certificates provided - HTTP requests will be redirected")
	}
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown SSE server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
