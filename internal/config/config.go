// Package config loads gateway configuration from defaults, an optional
// YAML file and SHIELD_-prefixed environment variables, in that order of
// precedence (later sources win).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the gateway's environment variables. A double
// underscore separates nesting levels so keys like api_key stay intact:
// SHIELD_GENERATION__GEMINI__API_KEY maps to generation.gemini.api_key.
const EnvPrefix = "SHIELD_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Detection  DetectionConfig  `koanf:"detection"`
	Generation GenerationConfig `koanf:"generation"`
	History    HistoryConfig    `koanf:"history"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type DetectionConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type GenerationConfig struct {
	Provider     string        `koanf:"provider"`
	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	Ollama       OllamaConfig  `koanf:"ollama"`
	Gemini       GeminiConfig  `koanf:"gemini"`
}

type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type GeminiConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type HistoryConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	Limit        int           `koanf:"limit"`
}

var defaults = map[string]any{
	"server.port":                8080,
	"server.request_timeout":     "120s",
	"detection.base_url":         "http://localhost:8000",
	"detection.timeout":          "60s",
	"generation.provider":        "ollama",
	"generation.max_attempts":    3,
	"generation.initial_delay":   "1s",
	"generation.ollama.base_url": "http://127.0.0.1:11434",
	"generation.ollama.model":    "llama3.2",
	"generation.gemini.model":    "gemini-2.5-flash",
	"history.poll_interval":      "3s",
	"history.limit":              50,
}

// Load reads configuration. path may be empty or point to a missing
// file; only a file that exists but fails to parse is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Generation.Provider {
	case "ollama":
	case "gemini":
		if c.Generation.Gemini.APIKey == "" {
			return fmt.Errorf("generation.gemini.api_key is required when provider is gemini")
		}
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	return nil
}
