package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// Provider names accepted by -provider.
const (
	ProviderStatic    = "static"
	ProviderSimulated = "simulated"
	ProviderFeed      = "feed"
)

// Config holds all daemon configuration.
type Config struct {
	Addr     string
	GRPCAddr string
	DBPath   string
	Debug    bool
	Trace    bool
	Persist  bool

	Platform  domain.Platform
	Provider  string
	Latitude  float64
	Longitude float64
	Profile   string

	LowAccuracyMode        string
	FastestInterval        time.Duration
	UpdateInterval         time.Duration
	SkipPermissionRequests bool

	InitialAuthorization domain.AuthorizationStatus
	AlwaysAuthorization  bool

	TokenHash      string
	RateLimit      int
	AllowedOrigins []string
}

// Load builds the configuration from defaults, then GEOLOC_* environment
// variables, then args. Flags take precedence over environment variables.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	platform := getEnv("GEOLOC_PLATFORM", string(domain.PlatformAndroid))
	authStr := getEnv("GEOLOC_AUTHORIZATION", domain.NotDetermined.String())
	origins := getEnv("GEOLOC_ALLOWED_ORIGINS", "")
	cfg.Addr = getEnv("GEOLOC_ADDR", ":8080")
	cfg.GRPCAddr = getEnv("GEOLOC_GRPC_ADDR", ":9000")
	cfg.DBPath = getEnv("GEOLOC_DB", "")
	cfg.Provider = getEnv("GEOLOC_PROVIDER", ProviderSimulated)
	cfg.Latitude = getEnvFloat("GEOLOC_LAT", 40.4168)
	cfg.Longitude = getEnvFloat("GEOLOC_LNG", -3.7038)
	cfg.Profile = getEnv("GEOLOC_PROFILE", "walking")
	cfg.LowAccuracyMode = getEnv("GEOLOC_LOW_ACCURACY_MODE", domain.DefaultLowAccuracyMode.String())
	cfg.FastestInterval = getEnvDuration("GEOLOC_FASTEST_INTERVAL", domain.DefaultFastestInterval)
	cfg.UpdateInterval = getEnvDuration("GEOLOC_UPDATE_INTERVAL", domain.DefaultUpdateInterval)
	cfg.SkipPermissionRequests = getEnvBool("GEOLOC_SKIP_PERMISSION_REQUESTS", false)
	cfg.AlwaysAuthorization = getEnvBool("GEOLOC_ALWAYS_AUTHORIZATION", false)
	cfg.TokenHash = getEnv("GEOLOC_TOKEN_HASH", "")
	cfg.RateLimit = int(getEnvFloat("GEOLOC_RATE_LIMIT", 0))
	cfg.Persist = getEnvBool("GEOLOC_PERSIST", true)
	cfg.Trace = getEnvBool("GEOLOC_TRACE", false)
	cfg.Debug = getEnvBool("GEOLOC_DEBUG", false)

	fs := flag.NewFlagSet("geolocd", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.GRPCAddr, "grpc", cfg.GRPCAddr, "gRPC server address (empty to disable)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite fix history (default ~/.geoloc/geoloc.db)")
	fs.StringVar(&platform, "platform", platform, "Platform to emulate: android or ios")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Location source: static, simulated or feed")
	fs.Float64Var(&cfg.Latitude, "lat", cfg.Latitude, "Starting latitude")
	fs.Float64Var(&cfg.Longitude, "lng", cfg.Longitude, "Starting longitude")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "Simulated movement: still, walking, cycling, driving")
	fs.StringVar(&cfg.LowAccuracyMode, "low-accuracy-mode", cfg.LowAccuracyMode, "Android low accuracy mode: BALANCED, LOW_POWER, NO_POWER")
	fs.DurationVar(&cfg.FastestInterval, "fastest-interval", cfg.FastestInterval, "Android fastest update interval")
	fs.DurationVar(&cfg.UpdateInterval, "update-interval", cfg.UpdateInterval, "Android update interval")
	fs.BoolVar(&cfg.SkipPermissionRequests, "skip-permission-requests", cfg.SkipPermissionRequests, "iOS: never prompt for authorization")
	fs.StringVar(&authStr, "authorization", authStr, "Initial authorization status")
	fs.BoolVar(&cfg.AlwaysAuthorization, "always-authorization", cfg.AlwaysAuthorization, "Prompts grant authorized_always instead of authorized_when_in_use")
	fs.StringVar(&cfg.TokenHash, "token-hash", cfg.TokenHash, "bcrypt hash of the API bearer token (empty disables auth)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "API requests per minute per client (0 disables)")
	fs.StringVar(&origins, "allowed-origins", origins, "WebSocket origins allowed (comma separated)")
	fs.BoolVar(&cfg.Persist, "persist", cfg.Persist, "Record delivered fixes to the database")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Export OpenTelemetry spans to stdout")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	p, err := domain.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	cfg.Platform = p

	status, err := domain.ParseAuthorizationStatus(authStr)
	if err != nil {
		return nil, err
	}
	cfg.InitialAuthorization = status
	cfg.AllowedOrigins = splitList(origins)

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flag parsing cannot.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderStatic, ProviderSimulated, ProviderFeed:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return errors.New("starting coordinates out of range")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	_, err := c.PlatformConfig()
	return err
}

// PlatformConfig is the configuration the façade starts with.
func (c *Config) PlatformConfig() (domain.PlatformConfig, error) {
	if c.Platform == domain.PlatformIOS {
		return domain.IOSConfig{SkipPermissionRequests: c.SkipPermissionRequests}, nil
	}
	mode, err := domain.ParseLowAccuracyMode(c.LowAccuracyMode)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeConfig(domain.AndroidConfig{
		LowAccuracyMode: mode,
		FastestInterval: c.FastestInterval,
		UpdateInterval:  c.UpdateInterval,
	})
}

// GrantedStatus is what a permission prompt resolves to.
func (c *Config) GrantedStatus() domain.AuthorizationStatus {
	if c.AlwaysAuthorization {
		return domain.AuthorizedAlways
	}
	return domain.AuthorizedWhenInUse
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// defaultDBPath returns ~/.geoloc/geoloc.db, creating the directory.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("Could not get user home directory, using current dir", "error", err)
		return "geoloc.db"
	}

	dir := filepath.Join(home, ".geoloc")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Could not create .geoloc directory, using current dir", "error", err)
		return "geoloc.db"
	}
	return filepath.Join(dir, "geoloc.db")
}
