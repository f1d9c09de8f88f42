// Package config loads runtime configuration. Precedence, lowest to
// highest: built-in defaults, kith.yaml in the data directory, values from
// an optional .env file, then KITH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`

	// APIToken guards the HTTP API; empty disables auth (local use).
	APIToken string `yaml:"api_token"`
	// ImportToken authorizes the trusted transcript import path.
	ImportToken string `yaml:"import_token"`

	OllamaURL  string `yaml:"ollama_url"`
	ChatModel  string `yaml:"chat_model"`
	EmbedModel string `yaml:"embed_model"`

	OpenAIKey   string `yaml:"openai_key"`
	OpenAIModel string `yaml:"openai_model"`
	GeminiKey   string `yaml:"gemini_key"`
	GeminiModel string `yaml:"gemini_model"`
	VisionURL   string `yaml:"vision_url"`

	// ProviderOrder is the synthesis chain, tried first to last.
	ProviderOrder []string `yaml:"provider_order"`
	// ProviderTimeout bounds one provider call.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// TopK is how many history chunks retrieval returns.
	TopK int `yaml:"top_k"`

	LogLevel string `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Port:            8420,
		DataDir:         defaultDataDir(),
		OllamaURL:       "http://localhost:11434",
		ChatModel:       "llama3.1:8b",
		EmbedModel:      "nomic-embed-text",
		OpenAIModel:     "gpt-4o-mini",
		GeminiModel:     "gemini-1.5-flash",
		ProviderOrder:   []string{"openai", "gemini", "local"},
		ProviderTimeout: 45 * time.Second,
		TopK:            5,
		LogLevel:        "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kith"
	}
	return filepath.Join(home, ".kith")
}

// Load resolves configuration from the process environment and disk.
func Load() (Config, error) {
	// Missing .env is fine; it only exists in dev setups.
	_ = godotenv.Load()
	return loadWith(os.Getenv)
}

// loadWith is the seam used by tests: env lookups go through getenv.
func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()

	dataDir := cfg.DataDir
	if v := getenv("KITH_DATA_DIR"); v != "" {
		dataDir = v
	}
	if err := applyYAML(&cfg, filepath.Join(dataDir, "kith.yaml")); err != nil {
		return Config{}, err
	}
	cfg.DataDir = dataDir

	applyEnv(&cfg, getenv)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.TopK <= 0 {
		return Config{}, fmt.Errorf("top_k must be positive, got %d", cfg.TopK)
	}
	if len(cfg.ProviderOrder) == 0 {
		return Config{}, fmt.Errorf("provider_order is empty")
	}
	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setStr := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setStr("KITH_DATA_DIR", &cfg.DataDir)
	setStr("KITH_API_TOKEN", &cfg.APIToken)
	setStr("KITH_IMPORT_TOKEN", &cfg.ImportToken)
	setStr("KITH_OLLAMA_URL", &cfg.OllamaURL)
	setStr("KITH_CHAT_MODEL", &cfg.ChatModel)
	setStr("KITH_EMBED_MODEL", &cfg.EmbedModel)
	setStr("KITH_OPENAI_KEY", &cfg.OpenAIKey)
	setStr("KITH_OPENAI_MODEL", &cfg.OpenAIModel)
	setStr("KITH_GEMINI_KEY", &cfg.GeminiKey)
	setStr("KITH_GEMINI_MODEL", &cfg.GeminiModel)
	setStr("KITH_VISION_URL", &cfg.VisionURL)
	setStr("KITH_LOG_LEVEL", &cfg.LogLevel)

	if v := getenv("KITH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := getenv("KITH_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.TopK = k
		}
	}
	if v := getenv("KITH_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProviderTimeout = d
		}
	}
	if v := getenv("KITH_PROVIDERS"); v != "" {
		var order []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				order = append(order, name)
			}
		}
		cfg.ProviderOrder = order
	}
}
