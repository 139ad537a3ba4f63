package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
	"github.com/NERVsystems/ecotripmcp/pkg/osm"
	"github.com/NERVsystems/ecotripmcp/pkg/registration"
	"github.com/NERVsystems/ecotripmcp/pkg/server"
	"github.com/NERVsystems/ecotripmcp/pkg/tools"
	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
	ver "github.com/NERVsystems/ecotripmcp/pkg/version"
)

const monitorInterval = 30 * time.Second

func main() {
	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logLevel := slog.LevelInfo
	if cfg.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if cfg.showVersion {
		fmt.Println(ver.String())
		return
	}

	if cfg.generateConfig != "" {
		if err := generateClientConfig(cfg.generateConfig, cfg.mergeOnly); err != nil {
			logger.Error("failed to generate config", "error", err)
			os.Exit(1)
		}
		logger.Info("successfully generated MCP client config", "path", cfg.generateConfig)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	osm.SetUserAgent(cfg.userAgent)
	osm.UpdateNominatimRateLimits(cfg.nominatimRPS, cfg.nominatimBurst)
	osm.UpdateOSRMRateLimits(cfg.osrmRPS, cfg.osrmBurst)

	calc, closeCalc, err := buildCalculator(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCalc()

	logger.Info("starting ecotrip MCP server",
		"version", ver.BuildVersion,
		"debug", cfg.debug,
		"distance_source", cfg.distanceSource,
		"catalog", cfg.catalogPath,
		"max_passengers", cfg.maxPassengers,
		"user_agent", cfg.userAgent,
		"nominatim_rps", cfg.nominatimRPS,
		"osrm_rps", cfg.osrmRPS,
		"http_enabled", cfg.enableHTTP,
		"monitoring_enabled", cfg.enableMonitoring,
		"monitoring_addr", cfg.monitoringAddr)

	var healthChecker *monitoring.HealthChecker
	if cfg.enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()

		osm.SetMonitoringHooks(&osm.MonitoringHooks{
			OnResponse: func(service, operation string, duration time.Duration, success bool) {
				monitoring.RecordExternalServiceRequest(service, operation, duration, success)
			},
			OnRateLimit: func(service string, waitTime time.Duration) {
				monitoring.RecordRateLimitWait(service, waitTime)
			},
			OnError: func(service, errorType string) {
				monitoring.RecordError(service, errorType)
			},
		})

		monitors := startExternalServiceMonitoring(cfg, healthChecker, logger)
		defer func() {
			for _, m := range monitors {
				m.Stop()
			}
		}()

		metricsSrv := startMetricsServer(cfg.monitoringAddr, logger)
		defer shutdownHTTP(metricsSrv, "monitoring server", logger)
	}

	s := server.NewServer(calc, logger)

	if cfg.enableRegistration {
		regClient := registration.NewClient(registrationConfig(cfg, calc, logger), logger)
		regClient.Start(ctx)
		defer regClient.Stop()
	}

	if cfg.enableHTTP {
		transport := server.NewHTTPTransport(s, server.HTTPTransportConfig{
			Addr:           cfg.httpAddr,
			BaseURL:        cfg.httpBaseURL,
			AuthType:       cfg.authType,
			AuthToken:      cfg.httpAuthToken,
			SSEEndpoint:    "/sse",
			MsgEndpoint:    "/message",
			EnableAPI:      cfg.httpEnableAPI,
			RateLimit:      cfg.httpRateLimit,
			RateBurst:      cfg.httpRateBurst,
			MaxRequestSize: 1 << 20,
			MaxHeaderBytes: 1 << 20,
			TLSCertFile:    cfg.tlsCertFile,
			TLSKeyFile:     cfg.tlsKeyFile,
			ForceHTTPS:     cfg.httpForceHTTPS,
		}, logger)
		if healthChecker != nil {
			transport.SetHealthChecker(healthChecker)
		}

		go func() {
			if err := transport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP transport error", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := transport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	} else if healthChecker != nil {
		healthChecker.SetTransport(monitoring.TransportInfo{Type: "stdio"})
	}

	// Without HTTP, stdio owns the main goroutine. With HTTP, stdio runs
	// alongside unless --http-only was given.
	switch {
	case !cfg.enableHTTP:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		return s.RunWithContext(ctx)
	case cfg.httpOnly:
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)
	default:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// buildCalculator wires the catalog, the distance source and the limits
// into a Calculator. The returned func releases the geocoder cache.
func buildCalculator(cfg *config, logger *slog.Logger) (*tools.Calculator, func(), error) {
	catalog, offsets := emissions.DefaultCatalog(), emissions.DefaultOffsets()
	if cfg.catalogPath != "" {
		var err error
		catalog, offsets, err = emissions.LoadCatalogFile(cfg.catalogPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("loaded transport mode catalog", "path", cfg.catalogPath, "modes", len(catalog))
	}

	estimator, err := emissions.NewEstimator(catalog, offsets)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	lookupCfg := distance.Config{
		FixedKm:     cfg.fixedDistanceKm,
		OSRMBaseURL: cfg.osrmURL,
		OSRMProfile: cfg.osrmProfile,
		CacheSize:   cfg.distanceCacheSize,
	}
	if cfg.distanceSource != distance.SourceFixed {
		geocoder := osm.NewGeocoder(osm.WithBaseURL(cfg.nominatimURL), osm.WithLogger(logger))
		lookupCfg.Geocoder = geocoder
		closeFn = geocoder.Close
	}

	lookup, err := distance.NewLookup(cfg.distanceSource, lookupCfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	calc := tools.NewCalculator(estimator,
		tools.WithDistanceLookup(lookup, cfg.distanceSource),
		tools.WithMaxPassengers(cfg.maxPassengers),
	)
	return calc, closeFn, nil
}

func registrationConfig(cfg *config, calc *tools.Calculator, logger *slog.Logger) registration.Config {
	svcURL := cfg.serviceURL
	if svcURL == "" && cfg.enableHTTP {
		svcURL = "http://localhost" + cfg.httpAddr
	}
	internalHealth := ""
	if cfg.internalURL != "" {
		internalHealth = strings.TrimRight(cfg.internalURL, "/") + "/health"
	}

	toolNames := tools.NewRegistry(logger, calc).GetToolNames()
	logger.Info("registration client initialized",
		"registry_url", cfg.registryURL,
		"service_url", svcURL,
		"tool_count", len(toolNames))

	return registration.Config{
		Enabled:           true,
		RegistryURL:       cfg.registryURL,
		ServiceName:       monitoring.ServiceName,
		ServiceURL:        svcURL,
		InternalURL:       cfg.internalURL,
		InternalHealthURL: internalHealth,
		Version:           ver.BuildVersion,
		Capabilities:      registration.DefaultCapabilities(),
		Tools:             toolNames,
		Metadata: map[string]any{
			"transport":       map[string]bool{"stdio": !cfg.httpOnly, "http": cfg.enableHTTP},
			"distance_source": cfg.distanceSource,
			"modes":           calc.Estimator().Catalog().IDs(),
		},
	}
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown "+name, "error", err)
	}
}

// startExternalServiceMonitoring probes the upstreams the distance source
// depends on. The fixed source has none.
func startExternalServiceMonitoring(cfg *config, hc *monitoring.HealthChecker, logger *slog.Logger) []*monitoring.ConnectionMonitor {
	var monitors []*monitoring.ConnectionMonitor

	switch cfg.distanceSource {
	case distance.SourceGreatCircle, distance.SourceRoad:
		monitors = append(monitors, monitoring.NewConnectionMonitor(osm.ServiceNominatim, hc,
			func(ctx context.Context) error { return osm.CheckNominatimHealth(ctx, cfg.nominatimURL) },
			monitorInterval))
	}
	if cfg.distanceSource == distance.SourceRoad {
		monitors = append(monitors, monitoring.NewConnectionMonitor(osm.ServiceOSRM, hc,
			func(ctx context.Context) error { return osm.CheckOSRMHealth(ctx, cfg.osrmURL) },
			monitorInterval))
	}

	names := make([]string, 0, len(monitors))
	for _, m := range monitors {
		m.Start()
		names = append(names, m.Name())
	}
	if len(names) > 0 {
		logger.Info("started external service monitoring",
			"services", names,
			"check_interval", monitorInterval.String())
	}
	return monitors
}

// generateClientConfig writes an mcpServers entry that launches this binary
// over stdio.
func generateClientConfig(path string, mergeOnly bool) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	config := map[string]any{}
	if mergeOnly {
		if data, err := os.ReadFile(cleanPath); err == nil {
			if err := json.Unmarshal(data, &config); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
		}
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "ecotripmcp"
	}

	servers, _ := config["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers[monitoring.ServiceName] = map[string]any{
		"command": exe,
		"args":    []string{},
	}
	config["mcpServers"] = servers

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validateSafePath only allows relative paths inside the working directory.
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed for security reasons")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}
