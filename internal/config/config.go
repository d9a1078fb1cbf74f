package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Config holds the ragdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
	Models    ModelsConfig    `yaml:"models"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Seed      SeedConfig      `yaml:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProvidersConfig holds the external model providers.
type ProvidersConfig struct {
	Embedding  EmbeddingProviderConfig  `yaml:"embedding"`
	Generation GenerationProviderConfig `yaml:"generation"`
	Rerank     RerankProviderConfig     `yaml:"rerank"`
}

// EmbeddingProviderConfig holds embedding provider settings.
type EmbeddingProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationProviderConfig holds generation provider settings.
type GenerationProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// RerankProviderConfig holds rerank provider settings.
type RerankProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ModelsConfig holds the model registries.
type ModelsConfig struct {
	Rerank []RerankModelConfig `yaml:"rerank"`
}

// RerankModelConfig describes one configured rerank model.
type RerankModelConfig struct {
	Name string `yaml:"name"`
}

// RateLimitConfig holds per-client request limits for the search route.
type RateLimitConfig struct {
	WindowSec int `yaml:"window_sec"` // default: 1
	Limit     int `yaml:"limit"`      // default: 15
}

// PricingConfig maps models to their price in points per 1000 tokens.
type PricingConfig struct {
	DefaultPointsPer1K float64            `yaml:"default_points_per_1k"`
	Models             map[string]float64 `yaml:"models"`
}

// SeedConfig provisions a demo account and dataset on startup (local/dev).
type SeedConfig struct {
	Enabled            bool   `yaml:"enabled"`
	AccountID          string `yaml:"account_id"`
	MemberID           string `yaml:"member_id"`
	AccountName        string `yaml:"account_name"`
	BalanceMillipoints int64  `yaml:"balance_millipoints"`
	APIKey             string `yaml:"api_key"`
	SessionToken       string `yaml:"session_token"`
	DatasetID          string `yaml:"dataset_id"`
	DatasetName        string `yaml:"dataset_name"`
}

// PointsPer1K resolves a model's price, falling back to the default.
func (p PricingConfig) PointsPer1K(model string) float64 {
	if price, ok := p.Models[model]; ok {
		return price
	}
	return p.DefaultPointsPer1K
}

// RerankRegistry is the configured set of rerank models.
type RerankRegistry struct {
	models map[string]domain.RerankModel
}

// RerankRegistry builds the lookup registry from config.
func (m ModelsConfig) RerankRegistry() *RerankRegistry {
	models := make(map[string]domain.RerankModel, len(m.Rerank))
	for _, rm := range m.Rerank {
		models[rm.Name] = domain.RerankModel{Name: rm.Name}
	}
	return &RerankRegistry{models: models}
}

// ResolveRerank maps a caller-supplied model name to a configured model.
func (r *RerankRegistry) ResolveRerank(name string) (domain.RerankModel, bool) {
	model, ok := r.models[name]
	return model, ok
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
	if c.Providers.Rerank.TimeoutSec <= 0 {
		c.Providers.Rerank.TimeoutSec = 30
	}
	if c.RateLimit.WindowSec <= 0 {
		c.RateLimit.WindowSec = 1
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 15
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Providers.Embedding.Model == "" {
		return fmt.Errorf("providers.embedding.model is required")
	}
	if c.Pricing.DefaultPointsPer1K < 0 {
		return fmt.Errorf("pricing.default_points_per_1k must not be negative")
	}
	for model, price := range c.Pricing.Models {
		if price < 0 {
			return fmt.Errorf("pricing.models.%s must not be negative", model)
		}
	}
	return nil
}

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
