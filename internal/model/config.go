package model

import (
	"runtime"
	"time"
)

// Config is the complete medbilldozer configuration.
// yaml tags drive `config show/init`, mapstructure tags drive viper.
type Config struct {
	Backends     BackendsConfig    `yaml:"backends" mapstructure:"backends"`
	Analysis     AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Routing      RoutingConfig     `yaml:"routing" mapstructure:"routing"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Sources      SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Store        StoreConfig       `yaml:"store" mapstructure:"store"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// BackendConfig configures one model backend
type BackendConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Model     string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"` // Prefer env vars
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Project   string        `yaml:"project,omitempty" mapstructure:"project"` // Vertex AI only
	Region    string        `yaml:"region,omitempty" mapstructure:"region"`   // Vertex AI only
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Proxy settings for self-hosted backends; empty uses the environment
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// BackendsConfig lists every supported backend.
// MedGemma is the domain-specialized model served through Ollama.
type BackendsConfig struct {
	OpenAI    BackendConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic BackendConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    BackendConfig `yaml:"gemini" mapstructure:"gemini"`
	MedGemma  BackendConfig `yaml:"medgemma" mapstructure:"medgemma"`
}

// AnalysisConfig controls provider selection and the ensemble
type AnalysisConfig struct {
	DefaultProvider        string        `yaml:"default_provider" mapstructure:"default_provider"` // "smart" or a provider key
	Timeout                time.Duration `yaml:"timeout" mapstructure:"timeout"`                   // Per analyze call
	CanonicalizerEnabled   bool          `yaml:"canonicalizer_enabled" mapstructure:"canonicalizer_enabled"`
	CanonicalizerBackend   string        `yaml:"canonicalizer_backend" mapstructure:"canonicalizer_backend"`
	CanonicalizerThreshold float64       `yaml:"canonicalizer_threshold" mapstructure:"canonicalizer_threshold"`
}

// RoutingConfig overrides the fixed document-type → backend routes.
// Keys are document types, values backend keys ("heuristic" disables models).
type RoutingConfig struct {
	Extract   map[string]string `yaml:"extract,omitempty" mapstructure:"extract"`
	LineItems map[string]string `yaml:"line_items,omitempty" mapstructure:"line_items"`
}

// CacheConfig controls the model completion cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig throttles calls per backend
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	// Backends overrides the shared rate for individual backend keys
	Backends map[string]RateOverride `yaml:"backends,omitempty" mapstructure:"backends"`
}

// RateOverride is a per-backend rate
type RateOverride struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// SourcesConfig controls document loading from URLs and buckets
type SourcesConfig struct {
	HTTPTimeout  time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"` // Per document
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`

	// RespectRobots checks robots.txt before fetching document URLs
	RespectRobots bool `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// StoreConfig controls run history persistence
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns sensible defaults. Model backends are disabled until
// credentials are supplied, so a fresh install runs fully offline.
func DefaultConfig() *Config {
	return &Config{
		Backends: BackendsConfig{
			OpenAI: BackendConfig{
				Model:     "gpt-4o-mini",
				Timeout:   60 * time.Second,
				MaxTokens: 2000,
			},
			Anthropic: BackendConfig{
				Model:     "claude-sonnet-4-5-20250929",
				Timeout:   60 * time.Second,
				MaxTokens: 2000,
			},
			Gemini: BackendConfig{
				Model:     "gemini-1.5-pro",
				Region:    "us-central1",
				Timeout:   60 * time.Second,
				MaxTokens: 2000,
			},
			MedGemma: BackendConfig{
				Model:     "medgemma",
				BaseURL:   "http://localhost:11434",
				Timeout:   120 * time.Second, // Local models are slower
				MaxTokens: 2000,
			},
		},
		Analysis: AnalysisConfig{
			DefaultProvider:        "smart",
			Timeout:                90 * time.Second,
			CanonicalizerEnabled:   false,
			CanonicalizerBackend:   "openai",
			CanonicalizerThreshold: 0.7,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.medbilldozer/cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Sources: SourcesConfig{
			HTTPTimeout:  30 * time.Second,
			UserAgent:    "medbilldozer/1.0",
			MaxBodyBytes: 10 << 20,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "~/.medbilldozer/history.db",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}
