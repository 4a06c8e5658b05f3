// Package config loads mnemo configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	DBPath          string                    `yaml:"db_path" mapstructure:"db_path"`
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Cache           CacheConfig               `yaml:"cache" mapstructure:"cache"`
	Recall          RecallConfig              `yaml:"recall" mapstructure:"recall"`
	Consolidation   ConsolidationConfig       `yaml:"consolidation" mapstructure:"consolidation"`
	HashFallback    bool                      `yaml:"hash_fallback" mapstructure:"hash_fallback"`
}

// ProviderConfig describes one embedding provider.
type ProviderConfig struct {
	Type          string          `yaml:"type" mapstructure:"type"` // ollama | openai | hash
	BaseURL       string          `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string          `yaml:"api_key" mapstructure:"api_key"`
	Model         string          `yaml:"model" mapstructure:"model"`
	Dimensions    int             `yaml:"dimensions" mapstructure:"dimensions"`
	MaxInputChars int             `yaml:"max_input_chars" mapstructure:"max_input_chars"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig is a rolling request ceiling. Zero MaxRequests
// disables limiting for the provider.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int64         `yaml:"max_entries" mapstructure:"max_entries"`
}

// RecallConfig holds recall defaults.
type RecallConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// ConsolidationConfig holds consolidation defaults.
type ConsolidationConfig struct {
	MaxMemories         int     `yaml:"max_memories" mapstructure:"max_memories"`
	ImportanceThreshold float64 `yaml:"importance_threshold" mapstructure:"importance_threshold"`
}

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath:          filepath.Join(home, ".mnemo", "memory.db"),
		DefaultProvider: "ollama",
		Providers: map[string]ProviderConfig{
			"ollama": {
				Type:          "ollama",
				BaseURL:       "http://localhost:11434",
				Model:         "nomic-embed-text",
				Dimensions:    768,
				MaxInputChars: 8000,
			},
			"openai": {
				Type:          "openai",
				BaseURL:       "https://api.openai.com/v1",
				APIKey:        "$OPENAI_API_KEY",
				Model:         "text-embedding-3-small",
				Dimensions:    1536,
				MaxInputChars: 8000,
				RateLimit:     RateLimitConfig{MaxRequests: 300, Window: time.Minute},
			},
		},
		Cache:  CacheConfig{TTL: 24 * time.Hour, MaxEntries: 10000},
		Recall: RecallConfig{Limit: 5},
		Consolidation: ConsolidationConfig{
			MaxMemories:         100,
			ImportanceThreshold: 0.7,
		},
		HashFallback: true,
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mnemo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mnemo")
}

// Load reads configuration from the first config.yaml found in the
// working directory or the user config dir, layered over defaults,
// with MNEMO_* environment overrides.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from an explicit file path, or the
// standard search paths when path is empty.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Search-path misses are fine (defaults apply); an explicit
		// path that fails to read, or a broken file, is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and fills in floors.
func (c *Config) Validate() error {
	if c.DefaultProvider == "" {
		return fmt.Errorf("config: default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("config: default_provider %q not found in providers", c.DefaultProvider)
	}
	for name, p := range c.Providers {
		switch p.Type {
		case "ollama", "openai", "hash":
		default:
			return fmt.Errorf("config: provider %q has invalid type %q (must be ollama, openai, or hash)", name, p.Type)
		}
		if p.Dimensions <= 0 && p.Type != "hash" {
			return fmt.Errorf("config: provider %q requires dimensions", name)
		}
		if p.RateLimit.MaxRequests > 0 && p.RateLimit.Window <= 0 {
			return fmt.Errorf("config: provider %q rate_limit requires a window", name)
		}
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Recall.Limit <= 0 {
		c.Recall.Limit = 5
	}
	if c.Consolidation.MaxMemories <= 0 {
		c.Consolidation.MaxMemories = 100
	}
	if c.Consolidation.ImportanceThreshold <= 0 {
		c.Consolidation.ImportanceThreshold = 0.7
	}
	return nil
}
