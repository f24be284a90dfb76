package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
)

// Config holds the metalquote service configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Quota    QuotaConfig    `yaml:"quota"`
	Poller   PollerConfig   `yaml:"poller"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds the upstream price API settings.
type APIConfig struct {
	APIKey            string   `yaml:"api_key"`
	BaseURL           string   `yaml:"base_url"`
	TimeoutSec        int      `yaml:"timeout_sec"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // 0 = no client-side limit
	Products          []string `yaml:"products"`            // tracked by the poller
	HistoryType       int      `yaml:"history_type"`        // 1 daily, 2 weekly, 3 monthly
	HistoryLimit      int      `yaml:"history_limit"`
	TrackLondon       *bool    `yaml:"track_london"` // default: true
}

// QuotaConfig holds the monthly call budget.
type QuotaConfig struct {
	MaxCallsPerMonth *int `yaml:"max_calls_per_month"` // default: 600, explicit 0 = unlimited
	CacheTTLSec      int `yaml:"cache_ttl_sec"`
}

// PollerConfig holds the refresh loop settings.
type PollerConfig struct {
	Enabled             *bool `yaml:"enabled"` // default: true
	RefreshIntervalSec  int   `yaml:"refresh_interval_sec"`
	RespectTradingHours *bool `yaml:"respect_trading_hours"` // default: true
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
// With no addrs the service keeps counters and cache in memory.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://api.tanshuapi.com"
	}
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = 10
	}
	if len(c.API.Products) == 0 {
		c.API.Products = []string{"XAU", "XAG", "XPT", "XPD"}
	}
	if c.API.HistoryType == 0 {
		c.API.HistoryType = int(domain.KlineDaily)
	}
	if c.API.HistoryLimit == 0 {
		c.API.HistoryLimit = 30
	}
	if c.API.TrackLondon == nil {
		c.API.TrackLondon = boolPtr(true)
	}
	if c.Quota.MaxCallsPerMonth == nil {
		c.Quota.MaxCallsPerMonth = intPtr(quota.DefaultMaxCallsPerMonth)
	}
	if c.Quota.CacheTTLSec <= 0 {
		c.Quota.CacheTTLSec = int(quota.DefaultCacheTTL.Seconds())
	}
	if c.Poller.Enabled == nil {
		c.Poller.Enabled = boolPtr(true)
	}
	if c.Poller.RefreshIntervalSec <= 0 {
		c.Poller.RefreshIntervalSec = 30
	}
	if c.Poller.RespectTradingHours == nil {
		c.Poller.RespectTradingHours = boolPtr(true)
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "metalquote:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative, got %v", c.API.RequestsPerSecond)
	}
	for _, p := range c.API.Products {
		req := domain.HistoryRequest{Product: p, Type: domain.KlineType(c.API.HistoryType), Limit: c.API.HistoryLimit}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("api.products: %w", err)
		}
	}
	if c.Quota.MaxCallsPerMonth != nil && *c.Quota.MaxCallsPerMonth < 0 {
		return fmt.Errorf("quota.max_calls_per_month must not be negative, got %d", *c.Quota.MaxCallsPerMonth)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	return nil
}

// QuotaPolicy returns the call budget as a domain policy.
func (c *Config) QuotaPolicy() quota.Policy {
	maxCalls := quota.DefaultMaxCallsPerMonth
	if c.Quota.MaxCallsPerMonth != nil {
		maxCalls = *c.Quota.MaxCallsPerMonth
	}
	return quota.Policy{
		MaxCallsPerMonth: maxCalls,
		CacheTTL:         time.Duration(c.Quota.CacheTTLSec) * time.Second,
	}
}

// TrackedKeys returns the request keys the poller refreshes.
func (c *Config) TrackedKeys() []domain.RequestKey {
	keys := make([]domain.RequestKey, 0, len(c.API.Products)+1)
	if c.API.TrackLondon != nil && *c.API.TrackLondon {
		keys = append(keys, domain.LondonKey())
	}
	for _, p := range c.API.Products {
		keys = append(keys, domain.HistoryRequest{
			Product: p,
			Type:    domain.KlineType(c.API.HistoryType),
			Limit:   c.API.HistoryLimit,
		}.Key())
	}
	return keys
}

// AuthEnabled reports whether at least one non-empty API key is configured.
func (c *Config) AuthEnabled() bool {
	for _, k := range c.Auth.APIKeys {
		if k != "" {
			return true
		}
	}
	return false
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
