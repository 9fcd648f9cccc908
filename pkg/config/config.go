// Package config loads and validates the YAML run configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Sources []SourceConfig `yaml:"sources" json:"sources" jsonschema:"description=News sources to fetch"`

	Select struct {
		Limit int `yaml:"limit" json:"limit" jsonschema:"default=10,description=Maximum items the LLM selects per source"`
	} `yaml:"select" json:"select" jsonschema:"description=Item selection configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=Completion providers used for selection and translation"`

	Dedup struct {
		Threshold float64 `yaml:"threshold" json:"threshold" jsonschema:"default=0.6,minimum=0,maximum=1,description=Title similarity ratio treated as the same story"`
	} `yaml:"dedup" json:"dedup" jsonschema:"description=Duplicate clustering configuration"`

	Workers struct {
		Fetch  int `yaml:"fetch" json:"fetch" jsonschema:"default=5,description=Concurrent source fetches"`
		Select int `yaml:"select" json:"select" jsonschema:"default=2,description=Concurrent selection calls"`
	} `yaml:"workers" json:"workers" jsonschema:"description=Worker pool sizes"`

	Fetch struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP timeout per source"`
		UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for source requests"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Source fetching configuration"`

	Trending TrendingConfig `yaml:"trending" json:"trending" jsonschema:"description=GitHub and HuggingFace trending configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text extraction for deep analysis"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:hotspot.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`
}

// SourceConfig describes one news source
type SourceConfig struct {
	Name    string `yaml:"name" json:"name" jsonschema:"required,description=Source display name used in reports"`
	Type    string `yaml:"type" json:"type" jsonschema:"required,enum=rss,enum=crawler,description=Source kind"`
	URL     string `yaml:"url" json:"url" jsonschema:"description=Feed URL for rss sources"`
	Fetcher string `yaml:"fetcher" json:"fetcher" jsonschema:"description=Registered crawler name for crawler sources"`
	Limit   int    `yaml:"limit" json:"limit" jsonschema:"default=30,description=Maximum raw items fetched from this source"`
}

// ProviderConfig holds one completion provider and its model roster
type ProviderConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Models   []string      `yaml:"models" json:"models" jsonschema:"description=Model roster in preference order"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
}

// LLMConfig holds the completion gateway configuration
type LLMConfig struct {
	Primary    ProviderConfig `yaml:"primary" json:"primary" jsonschema:"description=Primary provider"`
	Fallback   ProviderConfig `yaml:"fallback" json:"fallback" jsonschema:"description=Fallback provider"`
	MaxRetries int            `yaml:"max_retries" json:"max_retries" jsonschema:"default=2,description=Retries per model for transient failures"`
	RetryDelay time.Duration  `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=3s,description=Base delay between retries"`
}

// TrendingConfig toggles the trending sources
type TrendingConfig struct {
	GitHub         bool `yaml:"github" json:"github" jsonschema:"default=false,description=Fetch GitHub trending repos"`
	HuggingFace    bool `yaml:"huggingface" json:"huggingface" jsonschema:"default=false,description=Fetch HuggingFace trending models"`
	FetchLimit     int  `yaml:"fetch_limit" json:"fetch_limit" jsonschema:"default=30,description=Maximum entries fetched per trending source"`
	TranslateLimit int  `yaml:"translate_limit" json:"translate_limit" jsonschema:"default=20,description=Maximum entries sent for translation"`
}

// ExtractionConfig holds full-text extraction settings
type ExtractionConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full-text extraction for deep analysis"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	TopItems int           `yaml:"top_items" json:"top_items" jsonschema:"default=3,description=Number of primary items to extract full text for"`
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	for i := range cfg.Sources {
		if cfg.Sources[i].Limit == 0 {
			cfg.Sources[i].Limit = 30
		}
	}

	if cfg.Select.Limit == 0 {
		cfg.Select.Limit = 10
	}

	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = 3 * time.Second
	}
	if cfg.LLM.Primary.Timeout == 0 {
		cfg.LLM.Primary.Timeout = 60 * time.Second
	}
	if cfg.LLM.Fallback.Timeout == 0 {
		cfg.LLM.Fallback.Timeout = 60 * time.Second
	}

	if cfg.Dedup.Threshold == 0 {
		cfg.Dedup.Threshold = 0.6
	}

	if cfg.Workers.Fetch == 0 {
		cfg.Workers.Fetch = 5
	}
	if cfg.Workers.Select == 0 {
		cfg.Workers.Select = 2
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = defaultUserAgent
	}

	if cfg.Trending.FetchLimit == 0 {
		cfg.Trending.FetchLimit = 30
	}
	if cfg.Trending.TranslateLimit == 0 {
		cfg.Trending.TranslateLimit = 20
	}

	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}
	if cfg.Extraction.TopItems == 0 {
		cfg.Extraction.TopItems = 3
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:hotspot.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := map[string]bool{}
	for _, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("source name is required")
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true

		switch src.Type {
		case "rss":
			if src.URL == "" {
				return fmt.Errorf("source %q: url is required for rss sources", src.Name)
			}
		case "crawler":
			if src.Fetcher == "" {
				return fmt.Errorf("source %q: fetcher is required for crawler sources", src.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown type %q", src.Name, src.Type)
		}
	}

	if !providerConfigured(cfg.LLM.Primary) && !providerConfigured(cfg.LLM.Fallback) {
		return fmt.Errorf("llm: at least one provider with endpoint, api_key and models is required")
	}

	if cfg.Dedup.Threshold < 0 || cfg.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be between 0 and 1")
	}
	if cfg.Workers.Fetch < 1 || cfg.Workers.Select < 1 {
		return fmt.Errorf("worker pool sizes must be at least 1")
	}
	if cfg.Extraction.Enabled && cfg.Extraction.Timeout < time.Second {
		return fmt.Errorf("extraction timeout must be at least 1 second")
	}

	return nil
}

func providerConfigured(p ProviderConfig) bool {
	return p.Endpoint != "" && p.APIKey != "" && len(p.Models) > 0
}
