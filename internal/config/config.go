// Package config provides configuration management for galacticalc.
// Settings come from built-in defaults, optionally overlaid by a YAML file,
// and finally by environment variables. Every variable may be given with the
// GALACTICALC_ prefix; the unprefixed names (OPEN_AI_TOKEN, SWAPI_BASE_URL,
// CACHE_TTL, ...) are honored as a fallback.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/galacticalc/internal/resolver"
	"github.com/scrypster/galacticalc/pkg/types"
)

const envPrefix = "GALACTICALC_"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration settings for galacticalc.
type Config struct {
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Challenge   ChallengeConfig   `yaml:"challenge"`
	Sources     SourcesConfig     `yaml:"sources"`
	Cache       CacheConfig       `yaml:"cache"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Solver      SolverConfig      `yaml:"solver"`
	History     HistoryConfig     `yaml:"history"`
}

// InterpreterConfig contains chat-completion proxy settings.
type InterpreterConfig struct {
	Token   string        `yaml:"token"`   // Bearer token (required)
	APIURL  string        `yaml:"api_url"` // Proxy base URL (default: https://api.openai.com)
	Model   string        `yaml:"model"`   // Model name (default: gpt-4o-mini)
	Timeout time.Duration `yaml:"timeout"` // Request timeout (default: 60s)
}

// ChallengeConfig contains challenge service settings. The challenge service
// shares the interpreter's base URL and token unless BaseURL is set.
type ChallengeConfig struct {
	Mode    types.ExecutionMode `yaml:"mode"`     // test or prod (default: test)
	BaseURL string              `yaml:"base_url"` // Defaults to Interpreter.APIURL
	Timeout time.Duration       `yaml:"timeout"`  // Request timeout (default: 30s)
}

// SourcesConfig contains data source settings.
type SourcesConfig struct {
	SWAPIBaseURL       string        `yaml:"swapi_base_url"`       // default: https://swapi.dev/api
	PokeAPIBaseURL     string        `yaml:"pokeapi_base_url"`     // default: https://pokeapi.co/api/v2
	Timeout            time.Duration `yaml:"timeout"`              // Per-request timeout (default: 10s)
	RequestsPerSecond  float64       `yaml:"requests_per_second"`  // Per source; 0 disables limiting (default: 10)
	Burst              int           `yaml:"burst"`                // Limiter burst (default: 5)
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // Skip TLS verification for SWAPI (default: true)
}

// CacheConfig contains value cache settings.
type CacheConfig struct {
	TTLMillis     int           `yaml:"ttl_ms"`         // Entry TTL in milliseconds (default: 180000)
	SweepInterval time.Duration `yaml:"sweep_interval"` // Janitor interval; 0 disables (default: 1m)
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMillis) * time.Millisecond
}

// ResolverConfig contains attribute resolution settings.
type ResolverConfig struct {
	Policy         resolver.Policy `yaml:"policy"`          // default or strict (default: default)
	DefaultValue   float64         `yaml:"default_value"`   // Value for unresolved pairs (default: 0)
	MaxConcurrency int             `yaml:"max_concurrency"` // 0 means unlimited (default: 0)
}

// SolverConfig contains session settings.
type SolverConfig struct {
	TimeBudget    time.Duration `yaml:"time_budget"`    // default: 3m
	DefaultAnswer float64       `yaml:"default_answer"` // default: 0
	MaxProblems   int           `yaml:"max_problems"`   // 0 means unlimited
}

// HistoryConfig contains attempt log settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // SQLite file (default: ./data/history.db)
}

// LoadConfig loads configuration from environment variables with sensible defaults.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	return cfg, nil
}

// LoadConfigFile loads defaults, overlays the YAML file at path, then applies
// environment variables. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	if path == "" {
		return LoadConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Validate checks that the configuration can drive a session.
func (c *Config) Validate() error {
	var errs []error
	if c.Interpreter.Token == "" {
		errs = append(errs, errors.New("interpreter token is required (set GALACTICALC_OPEN_AI_TOKEN or OPEN_AI_TOKEN)"))
	}
	if !c.Challenge.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("execution mode %q must be %q or %q", c.Challenge.Mode, types.ModeTest, types.ModeProd))
	}
	if c.Resolver.Policy != resolver.PolicyDefault && c.Resolver.Policy != resolver.PolicyStrict {
		errs = append(errs, fmt.Errorf("resolver policy %q must be %q or %q", c.Resolver.Policy, resolver.PolicyDefault, resolver.PolicyStrict))
	}
	if c.Cache.TTLMillis < 0 {
		errs = append(errs, fmt.Errorf("cache ttl %dms must not be negative", c.Cache.TTLMillis))
	}
	if c.Sources.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second %v must not be negative", c.Sources.RequestsPerSecond))
	}
	if c.Resolver.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max concurrency %d must not be negative", c.Resolver.MaxConcurrency))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history path is required when history is enabled"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ChallengeBaseURL returns the challenge service base URL.
func (c *Config) ChallengeBaseURL() string {
	if c.Challenge.BaseURL != "" {
		return c.Challenge.BaseURL
	}
	return c.Interpreter.APIURL
}

func defaults() *Config {
	return &Config{
		Interpreter: InterpreterConfig{
			APIURL:  "https://api.openai.com",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Challenge: ChallengeConfig{
			Mode:    types.ModeTest,
			Timeout: 30 * time.Second,
		},
		Sources: SourcesConfig{
			SWAPIBaseURL:       "https://swapi.dev/api",
			PokeAPIBaseURL:     "https://pokeapi.co/api/v2",
			Timeout:            10 * time.Second,
			RequestsPerSecond:  10,
			Burst:              5,
			InsecureSkipVerify: true,
		},
		Cache: CacheConfig{
			TTLMillis:     180000,
			SweepInterval: time.Minute,
		},
		Resolver: ResolverConfig{
			Policy: resolver.PolicyDefault,
		},
		Solver: SolverConfig{
			TimeBudget: 3 * time.Minute,
		},
		History: HistoryConfig{
			Path: "./data/history.db",
		},
	}
}

// applyEnv overrides cfg with any environment variables that are set. The
// current field values act as defaults.
func applyEnv(cfg *Config) {
	cfg.Interpreter.Token = getEnv("OPEN_AI_TOKEN", cfg.Interpreter.Token)
	cfg.Interpreter.APIURL = getEnv("OPEN_AI_API_URL", cfg.Interpreter.APIURL)
	cfg.Interpreter.Model = getEnv("OPEN_AI_MODEL", cfg.Interpreter.Model)
	cfg.Interpreter.Timeout = getEnvDuration("INTERPRETER_TIMEOUT", cfg.Interpreter.Timeout)

	cfg.Challenge.Mode = types.ExecutionMode(getEnv("EXECUTION_MODE", string(cfg.Challenge.Mode)))
	cfg.Challenge.BaseURL = getEnv("CHALLENGE_BASE_URL", cfg.Challenge.BaseURL)
	cfg.Challenge.Timeout = getEnvDuration("CHALLENGE_TIMEOUT", cfg.Challenge.Timeout)

	cfg.Sources.SWAPIBaseURL = getEnv("SWAPI_BASE_URL", cfg.Sources.SWAPIBaseURL)
	cfg.Sources.PokeAPIBaseURL = getEnv("POKEAPI_BASE_URL", cfg.Sources.PokeAPIBaseURL)
	cfg.Sources.Timeout = getEnvDuration("SOURCE_TIMEOUT", cfg.Sources.Timeout)
	cfg.Sources.RequestsPerSecond = getEnvFloat("SOURCE_RPS", cfg.Sources.RequestsPerSecond)
	cfg.Sources.Burst = getEnvInt("SOURCE_BURST", cfg.Sources.Burst)
	cfg.Sources.InsecureSkipVerify = getEnvBool("SWAPI_INSECURE_SKIP_VERIFY", cfg.Sources.InsecureSkipVerify)

	cfg.Cache.TTLMillis = getEnvInt("CACHE_TTL", cfg.Cache.TTLMillis)
	cfg.Cache.SweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", cfg.Cache.SweepInterval)

	cfg.Resolver.Policy = resolver.Policy(getEnv("RESOLVER_POLICY", string(cfg.Resolver.Policy)))
	cfg.Resolver.DefaultValue = getEnvFloat("RESOLVER_DEFAULT_VALUE", cfg.Resolver.DefaultValue)
	cfg.Resolver.MaxConcurrency = getEnvInt("RESOLVER_MAX_CONCURRENCY", cfg.Resolver.MaxConcurrency)

	cfg.Solver.TimeBudget = getEnvDuration("TIME_BUDGET", cfg.Solver.TimeBudget)
	cfg.Solver.DefaultAnswer = getEnvFloat("DEFAULT_ANSWER", cfg.Solver.DefaultAnswer)
	cfg.Solver.MaxProblems = getEnvInt("MAX_PROBLEMS", cfg.Solver.MaxProblems)

	cfg.History.Enabled = getEnvBool("HISTORY_ENABLED", cfg.History.Enabled)
	cfg.History.Path = getEnv("HISTORY_PATH", cfg.History.Path)
}

// lookupEnv returns the prefixed variable if set, else the unprefixed one.
func lookupEnv(key string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return os.Getenv(key)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := lookupEnv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := lookupEnv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := lookupEnv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration ("90s", "3m") environment variable or
// returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := lookupEnv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := lookupEnv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
