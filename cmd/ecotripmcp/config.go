package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/osm"
	"github.com/NERVsystems/ecotripmcp/pkg/tools"
)

// envPrefix namespaces the environment variables that seed flag defaults.
const envPrefix = "ECOTRIP_"

type config struct {
	showVersion    bool
	debug          bool
	generateConfig string
	mergeOnly      bool

	// Calculator
	catalogPath       string
	distanceSource    string
	fixedDistanceKm   float64
	osrmProfile       string
	maxPassengers     int
	distanceCacheSize int

	// Upstream services
	userAgent      string
	nominatimURL   string
	osrmURL        string
	nominatimRPS   float64
	nominatimBurst int
	osrmRPS        float64
	osrmBurst      int

	// HTTP transport
	enableHTTP     bool
	httpOnly       bool
	httpAddr       string
	httpBaseURL    string
	httpAuthType   string
	httpAuthToken  string
	httpRateLimit  float64
	httpRateBurst  int
	httpEnableAPI  bool
	tlsCertFile    string
	tlsKeyFile     string
	httpForceHTTPS bool

	// Monitoring
	enableMonitoring bool
	monitoringAddr   string

	// Registration
	enableRegistration bool
	registryURL        string
	serviceURL         string
	internalURL        string

	authType core.AuthType
}

// envKey maps a flag name to its environment variable, e.g.
// "distance-source" to ECOTRIP_DISTANCE_SOURCE.
func envKey(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// envDefaults reads flag defaults from the environment. Malformed values are
// collected so parseFlags can report them instead of silently ignoring them.
type envDefaults struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envDefaults) getString(name, def string) string {
	if v, ok := e.lookup(envKey(name)); ok {
		return v
	}
	return def
}

func (e *envDefaults) getBool(name string, def bool) bool {
	v, ok := e.lookup(envKey(name))
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", envKey(name), err))
		return def
	}
	return b
}

func (e *envDefaults) getInt(name string, def int) int {
	v, ok := e.lookup(envKey(name))
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", envKey(name), err))
		return def
	}
	return n
}

func (e *envDefaults) getFloat(name string, def float64) float64 {
	v, ok := e.lookup(envKey(name))
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", envKey(name), err))
		return def
	}
	return f
}

// parseFlags parses args into a config. Environment variables seed the
// defaults and explicit flags win.
func parseFlags(fs *flag.FlagSet, args []string, lookupEnv func(string) (string, bool)) (*config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	env := &envDefaults{lookup: lookupEnv}
	cfg := &config{}

	fs.BoolVar(&cfg.showVersion, "version", false, "Display version information")
	fs.BoolVar(&cfg.debug, "debug", env.getBool("debug", false), "Enable debug logging")
	fs.StringVar(&cfg.generateConfig, "generate-config", "", "Write an MCP client config file at the specified path")
	fs.BoolVar(&cfg.mergeOnly, "merge-only", false, "Only merge new config, don't overwrite existing")

	fs.StringVar(&cfg.catalogPath, "catalog", env.getString("catalog", ""), "YAML file overriding the transport mode catalog and offset constants")
	fs.StringVar(&cfg.distanceSource, "distance-source", env.getString("distance-source", distance.SourceGreatCircle),
		"Distance source: "+strings.Join(distance.Sources(), ", "))
	fs.Float64Var(&cfg.fixedDistanceKm, "fixed-distance-km", env.getFloat("fixed-distance-km", distance.DefaultFixedKm), "Distance used by the fixed source")
	fs.StringVar(&cfg.osrmProfile, "osrm-profile", env.getString("osrm-profile", "car"), "OSRM profile for the road source")
	fs.IntVar(&cfg.maxPassengers, "max-passengers", env.getInt("max-passengers", tools.DefaultMaxPassengers), "Largest accepted passenger count")
	fs.IntVar(&cfg.distanceCacheSize, "distance-cache-size", env.getInt("distance-cache-size", 512), "Cached place pairs for network distance sources (0 disables)")

	fs.StringVar(&cfg.userAgent, "user-agent", env.getString("user-agent", osm.DefaultUserAgent), "User-Agent string for OSM API requests")
	fs.StringVar(&cfg.nominatimURL, "nominatim-url", env.getString("nominatim-url", osm.NominatimBaseURL), "Nominatim base URL")
	fs.StringVar(&cfg.osrmURL, "osrm-url", env.getString("osrm-url", osm.OSRMBaseURL), "OSRM base URL")
	fs.Float64Var(&cfg.nominatimRPS, "nominatim-rps", env.getFloat("nominatim-rps", 1.0), "Nominatim rate limit in requests per second")
	fs.IntVar(&cfg.nominatimBurst, "nominatim-burst", env.getInt("nominatim-burst", 1), "Nominatim rate limit burst size")
	fs.Float64Var(&cfg.osrmRPS, "osrm-rps", env.getFloat("osrm-rps", 1.0), "OSRM rate limit in requests per second")
	fs.IntVar(&cfg.osrmBurst, "osrm-burst", env.getInt("osrm-burst", 1), "OSRM rate limit burst size")

	fs.BoolVar(&cfg.enableHTTP, "enable-http", env.getBool("enable-http", false), "Enable HTTP+SSE transport (in addition to stdio)")
	fs.BoolVar(&cfg.httpOnly, "http-only", env.getBool("http-only", false), "Run HTTP transport only, skip stdio (requires --enable-http)")
	fs.StringVar(&cfg.httpAddr, "http-addr", env.getString("http-addr", ":7082"), "HTTP server address")
	fs.StringVar(&cfg.httpBaseURL, "http-base-url", env.getString("http-base-url", ""), "Base URL for HTTP transport (auto-detected if empty)")
	fs.StringVar(&cfg.httpAuthType, "http-auth-type", env.getString("http-auth-type", "none"), "HTTP authentication type: none, bearer, basic")
	fs.StringVar(&cfg.httpAuthToken, "http-auth-token", env.getString("http-auth-token", ""), "Bearer token, or user:password for basic auth")
	fs.Float64Var(&cfg.httpRateLimit, "http-rate-limit", env.getFloat("http-rate-limit", 10), "Per-client requests per second on protected endpoints (0 disables)")
	fs.IntVar(&cfg.httpRateBurst, "http-rate-burst", env.getInt("http-rate-burst", 20), "Per-client burst size")
	fs.BoolVar(&cfg.httpEnableAPI, "http-api", env.getBool("http-api", true), "Serve the JSON API under /api/")
	fs.StringVar(&cfg.tlsCertFile, "tls-cert", env.getString("tls-cert", ""), "TLS certificate file")
	fs.StringVar(&cfg.tlsKeyFile, "tls-key", env.getString("tls-key", ""), "TLS private key file")
	fs.BoolVar(&cfg.httpForceHTTPS, "force-https", env.getBool("force-https", false), "Redirect plain HTTP requests to HTTPS")

	fs.BoolVar(&cfg.enableMonitoring, "enable-monitoring", env.getBool("enable-monitoring", true), "Enable Prometheus metrics and health endpoints")
	fs.StringVar(&cfg.monitoringAddr, "monitoring-addr", env.getString("monitoring-addr", ":9090"), "Monitoring server address")

	fs.BoolVar(&cfg.enableRegistration, "enable-registration", env.getBool("enable-registration", false), "Enable service registration")
	fs.StringVar(&cfg.registryURL, "registry-url", env.getString("registry-url", ""), "Service registry URL (e.g., http://registry:7083)")
	fs.StringVar(&cfg.serviceURL, "service-url", env.getString("service-url", ""), "External URL where this service is accessible")
	fs.StringVar(&cfg.internalURL, "internal-url", env.getString("internal-url", ""), "Internal URL for container environments")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(env.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %w", env.errs[0])
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	authType, err := core.ParseAuthType(c.httpAuthType)
	if err != nil {
		return fmt.Errorf("--http-auth-type: %w", err)
	}
	c.authType = authType

	if c.httpOnly && !c.enableHTTP {
		return fmt.Errorf("--http-only requires --enable-http")
	}
	if c.maxPassengers < 1 {
		return fmt.Errorf("--max-passengers must be at least 1, got %d", c.maxPassengers)
	}
	if c.distanceCacheSize < 0 {
		return fmt.Errorf("--distance-cache-size must not be negative")
	}
	if (c.tlsCertFile == "") != (c.tlsKeyFile == "") {
		return fmt.Errorf("--tls-cert and --tls-key must be set together")
	}
	for _, s := range distance.Sources() {
		if s == c.distanceSource {
			return nil
		}
	}
	return fmt.Errorf("--distance-source %q: want one of %s", c.distanceSource, strings.Join(distance.Sources(), ", "))
}
