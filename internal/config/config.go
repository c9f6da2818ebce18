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

	"github.com/kailas-cloud/voxmap/internal/domain"
)

// Config holds the voxmap service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Cache      CacheConfig      `yaml:"cache"`
	Events     EventsConfig     `yaml:"events"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
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
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ClassifierConfig holds remote topic classifier settings.
type ClassifierConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	TimeoutMs    int           `yaml:"timeout_ms"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	Retry        RetryConfig   `yaml:"retry"`
	Breaker      BreakerConfig `yaml:"breaker"`
	Budget       BudgetConfig  `yaml:"budget"`
}

// Enabled reports whether a remote classifier is configured.
func (c ClassifierConfig) Enabled() bool { return c.APIKey != "" }

// RetryConfig holds retry settings for remote calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	OpenTimeoutSec      int    `yaml:"open_timeout_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EnrichmentConfig holds topic research settings. Credentials default to
// the classifier's.
type EnrichmentConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	ClaimTTLSec int    `yaml:"claim_ttl_sec"`
}

// PipelineConfig holds segmentation, batching and gate settings.
type PipelineConfig struct {
	HardCapWords      int     `yaml:"hard_cap_words"`
	SoftMinWords      int     `yaml:"soft_min_words"`
	InterimFlushWords int     `yaml:"interim_flush_words"`
	DebounceMs        int     `yaml:"debounce_ms"`
	MaxBatchSize      int     `yaml:"max_batch_size"`
	MinConfidence     float64 `yaml:"min_confidence"`
	ReadyTimeoutMs    int     `yaml:"ready_timeout_ms"`
}

// CacheConfig holds classification cache settings.
type CacheConfig struct {
	Enabled             *bool   `yaml:"enabled"` // default: true
	TTLHours            int     `yaml:"ttl_hours"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RecentWindow        int     `yaml:"recent_window"`
}

// EventsConfig holds graph event fan-out settings.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds the Kafka sink settings.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	ClientID       string   `yaml:"client_id"`
	WriteTimeoutMs int      `yaml:"write_timeout_ms"`
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
		c.HTTP.WriteTimeoutSec = 10
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

	cl := &c.Classifier
	if cl.Provider == "" {
		cl.Provider = "openai"
	}
	if cl.Model == "" {
		cl.Model = "gpt-4o-mini"
	}
	if cl.TimeoutMs <= 0 {
		cl.TimeoutMs = 10000
	}
	if cl.MaxBatchSize <= 0 {
		cl.MaxBatchSize = 16
	}
	if cl.Retry.MaxAttempts <= 0 {
		cl.Retry.MaxAttempts = 3
	}
	if cl.Retry.BaseDelayMs <= 0 {
		cl.Retry.BaseDelayMs = 1000
	}
	if cl.Retry.MaxDelayMs <= 0 {
		cl.Retry.MaxDelayMs = 10000
	}
	if cl.Breaker.ConsecutiveFailures == 0 {
		cl.Breaker.ConsecutiveFailures = 5
	}
	if cl.Breaker.OpenTimeoutSec <= 0 {
		cl.Breaker.OpenTimeoutSec = 30
	}

	en := &c.Enrichment
	if en.APIKey == "" {
		en.APIKey = cl.APIKey
	}
	if en.BaseURL == "" {
		en.BaseURL = cl.BaseURL
	}
	if en.Model == "" {
		en.Model = cl.Model
	}
	if en.TimeoutSec <= 0 {
		en.TimeoutSec = 45
	}
	if en.ClaimTTLSec <= 0 {
		en.ClaimTTLSec = 120
	}

	p := &c.Pipeline
	if p.HardCapWords <= 0 {
		p.HardCapWords = 5
	}
	if p.SoftMinWords <= 0 {
		p.SoftMinWords = 1
	}
	if p.InterimFlushWords <= 0 {
		p.InterimFlushWords = 3
	}
	if p.DebounceMs <= 0 {
		p.DebounceMs = 150
	}
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = 8
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = 0.4
	}
	if p.ReadyTimeoutMs <= 0 {
		p.ReadyTimeoutMs = 5000
	}

	if c.Cache.Enabled == nil {
		enabled := true
		c.Cache.Enabled = &enabled
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.SimilarityThreshold <= 0 {
		c.Cache.SimilarityThreshold = 0.85
	}
	if c.Cache.RecentWindow <= 0 {
		c.Cache.RecentWindow = 50
	}

	k := &c.Events.Kafka
	if k.Topic == "" {
		k.Topic = "voxmap.graph"
	}
	if k.ClientID == "" {
		k.ClientID = "voxmap"
	}
	if k.WriteTimeoutMs <= 0 {
		k.WriteTimeoutMs = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"valkey\", \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Classifier.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"classifier.budget.action must be \"warn\" or \"reject\", got %q",
			c.Classifier.Budget.Action,
		)
	}
	if t := c.Cache.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in (0, 1], got %g", t)
	}
	if mc := c.Pipeline.MinConfidence; mc < 0 || mc > 1 {
		return fmt.Errorf("pipeline.min_confidence must be in [0, 1], got %g", mc)
	}
	if c.Pipeline.SoftMinWords > c.Pipeline.HardCapWords {
		return fmt.Errorf("pipeline.soft_min_words (%d) exceeds hard_cap_words (%d)",
			c.Pipeline.SoftMinWords, c.Pipeline.HardCapWords)
	}
	if c.Enrichment.Enabled && c.Enrichment.APIKey == "" {
		return fmt.Errorf("enrichment.api_key is required when enrichment is enabled")
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// PipelineSettings converts the pipeline section into domain settings.
func (c *Config) PipelineSettings() domain.PipelineConfig {
	return domain.PipelineConfig{
		HardCapWords:      c.Pipeline.HardCapWords,
		SoftMinWords:      c.Pipeline.SoftMinWords,
		InterimFlushWords: c.Pipeline.InterimFlushWords,
		Debounce:          time.Duration(c.Pipeline.DebounceMs) * time.Millisecond,
		MaxBatchSize:      c.Pipeline.MaxBatchSize,
		MinConfidence:     c.Pipeline.MinConfidence,
		ReadyTimeout:      time.Duration(c.Pipeline.ReadyTimeoutMs) * time.Millisecond,
	}
}

// CacheSettings converts the cache section into domain settings.
func (c *Config) CacheSettings() domain.CacheConfig {
	return domain.CacheConfig{
		TTL:                 time.Duration(c.Cache.TTLHours) * time.Hour,
		SimilarityThreshold: c.Cache.SimilarityThreshold,
		RecentWindow:        c.Cache.RecentWindow,
	}
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
