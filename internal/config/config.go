// Package config loads the citegate API configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the citegate API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Vertex     VertexConfig     `yaml:"vertex"`
	Generation GenerationConfig `yaml:"generation"`
	Chat       ChatConfig       `yaml:"chat"`
	Auth       AuthConfig       `yaml:"auth"`
	Session    SessionConfig    `yaml:"session"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds redis connection settings for the session and
// budget stores.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// VertexConfig holds Google Cloud project and RAG corpus settings.
type VertexConfig struct {
	Project     string `yaml:"project"`
	Location    string `yaml:"location"`
	RAGCorpus   string `yaml:"rag_corpus"`
	DefaultTopK int    `yaml:"default_top_k"`
	MaxTopK     int    `yaml:"max_top_k"`
}

// GenerationConfig holds generation provider settings.
type GenerationConfig struct {
	Provider    string       `yaml:"provider"` // gemini (default), openai
	Model       string       `yaml:"model"`
	Temperature float32      `yaml:"temperature"`
	OpenAI      OpenAIConfig `yaml:"openai"`
	Budget      BudgetConfig `yaml:"budget"`
}

// OpenAIConfig holds settings for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// BudgetConfig holds generation token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ChatConfig holds chat behavior settings.
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt"` // empty = built-in default
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// SessionConfig holds session cookie and transcript persistence settings.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	TTLHours   int    `yaml:"ttl_hours"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
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
		// Generation round trips are slow; allow well above the read timeout.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Vertex.Location == "" {
		c.Vertex.Location = "us-central1"
	}
	if c.Vertex.DefaultTopK <= 0 {
		c.Vertex.DefaultTopK = 5
	}
	if c.Vertex.MaxTopK <= 0 {
		c.Vertex.MaxTopK = 20
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "gemini"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gemini-2.0-flash-001"
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.2
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "citegate_session"
	}
	if c.Session.TTLHours <= 0 {
		c.Session.TTLHours = 24
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "citegate:"
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
	switch c.Generation.Provider {
	case "gemini":
		if c.Vertex.Project == "" {
			return fmt.Errorf("vertex.project is required for the gemini provider")
		}
		if c.Vertex.RAGCorpus == "" {
			return fmt.Errorf("vertex.rag_corpus is required for the gemini provider")
		}
	case "openai":
		if c.Generation.OpenAI.APIKey == "" {
			return fmt.Errorf("generation.openai.api_key is required for the openai provider")
		}
		// Retrieval still runs against Vertex RAG for this provider.
		if c.Vertex.Project == "" || c.Vertex.RAGCorpus == "" {
			return fmt.Errorf("vertex.project and vertex.rag_corpus are required")
		}
	default:
		return fmt.Errorf("generation.provider must be \"gemini\" or \"openai\", got %q", c.Generation.Provider)
	}
	switch c.Generation.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"generation.budget.action must be \"warn\" or \"reject\", got %q",
			c.Generation.Budget.Action,
		)
	}
	if c.Vertex.DefaultTopK > c.Vertex.MaxTopK {
		return fmt.Errorf("vertex.default_top_k %d exceeds vertex.max_top_k %d",
			c.Vertex.DefaultTopK, c.Vertex.MaxTopK)
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
