package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMProvider defines the backend LLM service type used for scam
// classification and persona generation.
type LLMProvider string

const (
	ProviderNone       LLMProvider = "none"       // No LLM, heuristics only
	ProviderGroq       LLMProvider = "groq"       // Groq (default, high-speed inference)
	ProviderOpenRouter LLMProvider = "openrouter" // OpenRouter
	ProviderOllama     LLMProvider = "ollama"     // Local Ollama server
	ProviderCustom     LLMProvider = "custom"     // Custom OpenAI-compatible endpoint
)

// Config holds global settings for the decoyd gateway.
// All settings can be configured via environment variables or a YAML file.
type Config struct {
	// === Core Settings ===
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // x-api-key value required on protected endpoints

	// === LLM Provider Configuration ===
	LLMProvider LLMProvider   `yaml:"llm_provider"`
	LLMAPIKey   string        `yaml:"llm_api_key"`
	LLMModel    string        `yaml:"llm_model"`
	LLMBaseURL  string        `yaml:"llm_base_url"`
	LLMTimeout  time.Duration `yaml:"-"`

	// === Detection & Completion ===
	HeuristicThreshold int `yaml:"heuristic_threshold"` // keyword score at which a message is a scam
	MessageBudget      int `yaml:"message_budget"`      // forced completion after this many scammer turns

	// === Intelligence Callback ===
	CallbackURL     string        `yaml:"callback_url"`
	CallbackTimeout time.Duration `yaml:"-"`

	// === Optional Backends ===
	RedisAddr   string `yaml:"redis_addr"`   // non-empty enables the Redis session store
	DatabaseURL string `yaml:"database_url"` // non-empty enables the Postgres report archive
	NATSURL     string `yaml:"nats_url"`     // non-empty enables lifecycle event publishing
	NATSToken   string `yaml:"nats_token"`
}

// fileConfig mirrors the YAML-settable subset plus second-granularity timeouts.
type fileConfig struct {
	Config                 `yaml:",inline"`
	LLMTimeoutSeconds      int `yaml:"llm_timeout_seconds"`
	CallbackTimeoutSeconds int `yaml:"callback_timeout_seconds"`
}

// Load builds a Config in three layers: defaults, then the optional YAML
// file named by DECOYD_CONFIG, then environment variables. The environment
// always wins over the file.
func Load() *Config {
	cfg := &Config{
		Port:   8080,
		APIKey: "default_key_change_me",

		LLMModel:   "llama-3.3-70b-versatile",
		LLMTimeout: 15 * time.Second,

		HeuristicThreshold: 3,
		MessageBudget:      15,

		CallbackURL:     "https://example.com/callback",
		CallbackTimeout: 5 * time.Second,
	}

	if path := os.Getenv("DECOYD_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Printf("[WARN] config file %s ignored: %v", path, err)
		}
	}

	cfg.applyEnv()
	return cfg
}

// applyEnv overlays environment variables onto the current values, so any
// key the environment does not set keeps its default or file value.
func (c *Config) applyEnv() {
	c.Port = GetEnvInt("DECOYD_PORT", c.Port)
	c.APIKey = GetEnv("API_KEY", c.APIKey)

	if p := detectLLMProvider(); p != ProviderNone {
		c.LLMProvider = p
	} else if c.LLMProvider == "" {
		c.LLMProvider = ProviderNone
	}
	c.LLMAPIKey = GetEnv("DECOYD_LLM_API_KEY", GetEnv("GROQ_API_KEY", c.LLMAPIKey))
	c.LLMModel = GetEnv("DECOYD_LLM_MODEL", c.LLMModel)
	c.LLMBaseURL = GetEnv("DECOYD_LLM_BASE_URL", c.LLMBaseURL)
	if v := GetEnvInt("DECOYD_LLM_TIMEOUT_SECONDS", 0); v > 0 {
		c.LLMTimeout = time.Duration(v) * time.Second
	}

	c.HeuristicThreshold = GetEnvInt("HEURISTIC_THRESHOLD", c.HeuristicThreshold)
	c.MessageBudget = GetEnvInt("MAX_MESSAGES_BEFORE_COMPLETE", c.MessageBudget)

	c.CallbackURL = GetEnv("CALLBACK_URL", c.CallbackURL)
	if v := GetEnvInt("CALLBACK_TIMEOUT_SECONDS", 0); v > 0 {
		c.CallbackTimeout = time.Duration(v) * time.Second
	}

	c.RedisAddr = GetEnv("REDIS_ADDR", c.RedisAddr)
	c.DatabaseURL = GetEnv("DATABASE_URL", c.DatabaseURL)
	c.NATSURL = GetEnv("NATS_URL", c.NATSURL)
	c.NATSToken = GetEnv("NATS_TOKEN", c.NATSToken)
}

// applyFile overlays values from a YAML file onto the defaults. applyEnv
// runs afterwards, so the environment keeps precedence over the file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	fc.Config = *c
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if fc.LLMTimeoutSeconds > 0 {
		fc.Config.LLMTimeout = time.Duration(fc.LLMTimeoutSeconds) * time.Second
	}
	if fc.CallbackTimeoutSeconds > 0 {
		fc.Config.CallbackTimeout = time.Duration(fc.CallbackTimeoutSeconds) * time.Second
	}

	*c = fc.Config
	return nil
}

// Validate checks for configuration mistakes that would break the pipeline.
func (c *Config) Validate() error {
	var problems []string
	if c.HeuristicThreshold < 1 {
		problems = append(problems, "heuristic threshold must be >= 1")
	}
	if c.MessageBudget < 1 {
		problems = append(problems, "message budget must be >= 1")
	}
	if c.CallbackURL == "" {
		problems = append(problems, "callback URL is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	if c.APIKey == "default_key_change_me" {
		log.Printf("[WARN] API_KEY not set - using the default key. Set API_KEY in production!")
	}
	return nil
}

func detectLLMProvider() LLMProvider {
	if p := os.Getenv("DECOYD_LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("DECOYD_LLM_API_KEY") != "" {
		return ProviderOpenRouter
	}
	return ProviderNone
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
