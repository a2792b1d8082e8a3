package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete legiswatch configuration. It is built once by the
// CLI layer and passed explicitly into every component constructor.
type Config struct {
	OpenStates   OpenStatesConfig   `yaml:"openstates" mapstructure:"openstates"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Sink         SinkConfig         `yaml:"sink" mapstructure:"sink"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Dedup        DedupConfig        `yaml:"dedup" mapstructure:"dedup"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// OpenStatesConfig configures the legislative-data API
type OpenStatesConfig struct {
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"` // Per keyword/jurisdiction query; 0 = unlimited

	// ServerSearch sends each keyword as searchQuery. When false, each
	// jurisdiction is listed once and keywords are matched on title and
	// abstract client side.
	ServerSearch bool `yaml:"server_search" mapstructure:"server_search"`
}

// LLMConfig configures the summarization endpoint
type LLMConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model        string  `yaml:"model" mapstructure:"model"`
	APIKey       string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url,omitempty" mapstructure:"base_url"` // OpenAI-compatible local endpoint
	Timeout      int     `yaml:"timeout" mapstructure:"timeout"`             // seconds, per request
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTextChars int     `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	JSONMode     bool    `yaml:"json_mode" mapstructure:"json_mode"`
}

// PipelineConfig configures what a run looks for
type PipelineConfig struct {
	Keywords       []string `yaml:"keywords" mapstructure:"keywords"`
	Jurisdictions  []string `yaml:"jurisdictions" mapstructure:"jurisdictions"`
	LookbackDays   int      `yaml:"lookback_days" mapstructure:"lookback_days"`
	FetchDocuments bool     `yaml:"fetch_documents" mapstructure:"fetch_documents"` // Use source document text instead of the abstract
}

// SinkConfig selects where alerts go
type SinkConfig struct {
	Type   string `yaml:"sink" mapstructure:"sink"`     // console, webhook, queue, file
	Target string `yaml:"target" mapstructure:"target"` // URL, redis URL, or file path
}

// HTTPConfig configures outbound HTTP for the API and document fetches
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the summary cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds the per-bill worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig paces LLM and API requests
type RateLimitingConfig struct {
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize            int     `yaml:"burst_size" mapstructure:"burst_size"`
	APIRequestsPerSecond float64 `yaml:"api_requests_per_second" mapstructure:"api_requests_per_second"`
}

// DedupConfig controls cross-run suppression of already alerted bills
type DedupConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MetricsConfig configures the Prometheus Pushgateway push at run end
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// TelemetryConfig configures OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
}

// LoggingConfig configures slog
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the defaults shown by `legiswatch config show`
func DefaultConfig() *Config {
	return &Config{
		OpenStates: OpenStatesConfig{
			Endpoint:     "https://openstates.org/graphql",
			PageSize:     20,
			MaxPages:     5,
			ServerSearch: true,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Timeout:      60,
			MaxTokens:    800,
			Temperature:  0.2,
			MaxTextChars: 8000,
			JSONMode:     true,
		},
		Pipeline: PipelineConfig{
			Keywords:       []string{"cryptocurrency", "digital asset", "blockchain"},
			Jurisdictions:  []string{"ocd-jurisdiction/country:us/state:ca/government", "ocd-jurisdiction/country:us/state:al/government"},
			LookbackDays:   7,
			FetchDocuments: true,
		},
		Sink: SinkConfig{
			Type: "console",
		},
		HTTP: HTTPConfig{
			Timeout:       20 * time.Second,
			UserAgent:     "Legiswatch/1.0 (+https://github.com/ppiankov/legiswatch)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".legiswatch/cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond:    1,
			BurstSize:            2,
			APIRequestsPerSecond: 0.5,
		},
		Dedup: DedupConfig{
			Enabled: false,
			Dir:     ".legiswatch/seen",
			TTL:     90 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Job: "legiswatch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Since returns the start of the lookback window relative to now
func (c *Config) Since(now time.Time) time.Time {
	return Day(now).AddDate(0, 0, -c.Pipeline.LookbackDays)
}

// Validate checks the settings a run cannot start without
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.OpenStates.APIKey) == "" {
		errs = append(errs, fmt.Errorf("%w: OPENSTATES_KEY is required", ErrAuth))
	}
	if c.OpenStates.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%w: openstates.endpoint is required", ErrValidation))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: OPENAI_API_KEY or OPENAI_BASE_URL is required", ErrAuth))
		}
	case "anthropic", "claude":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("%w: ANTHROPIC_API_KEY is required", ErrAuth))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown llm.provider %q", ErrValidation, c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("%w: llm.model is required", ErrValidation))
	}

	if len(nonEmpty(c.Pipeline.Keywords)) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one keyword is required", ErrValidation))
	}
	if c.Pipeline.LookbackDays < 0 {
		errs = append(errs, fmt.Errorf("%w: lookback_days must not be negative", ErrValidation))
	}

	switch c.Sink.Type {
	case "console", "":
	case "webhook", "queue", "file":
		if c.Sink.Target == "" {
			errs = append(errs, fmt.Errorf("%w: sink %q requires a target", ErrValidation, c.Sink.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown sink %q", ErrValidation, c.Sink.Type))
	}

	return errors.Join(errs...)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// CleanKeywords returns the configured keywords, trimmed and non-empty
func (c *Config) CleanKeywords() []string {
	return nonEmpty(c.Pipeline.Keywords)
}
