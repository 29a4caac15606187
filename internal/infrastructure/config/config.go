// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), layered over the defaults
//  2. Environment variables prefixed RECONCILER_ (fallback)
//
// Every default lives in Default(). Components receive the typed sections
// they need, never package-level state.
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv("config.yaml")
//	if err := cfg.Validate(); err != nil { ... }
//	m := matcher.NewMatcher(cfg.MatcherConfig(), nil)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/eshaffer321/charter-reconciler/internal/domain/allocator"
	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "RECONCILER_"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Allocation    AllocationConfig    `yaml:"allocation"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver       string `yaml:"driver"`        // sqlite3 or postgres
	DatabasePath string `yaml:"database_path"` // sqlite3
	DSN          string `yaml:"dsn"`           // postgres
}

// MatchingConfig holds candidate generation, scoring and apply settings
type MatchingConfig struct {
	DateWindowDays       int      `yaml:"date_window_days"`
	ToleranceWindowDays  int      `yaml:"tolerance_window_days"`
	AmountTolerance      float64  `yaml:"amount_tolerance"`
	AmountEpsilon        float64  `yaml:"amount_epsilon"`
	MaxCandidates        int      `yaml:"max_candidates_per_transaction"`
	DatePenaltyPerDay    float64  `yaml:"date_penalty_per_day"`
	StrongScoreThreshold float64  `yaml:"strong_score_threshold"`
	AllowedMatchTypes    []string `yaml:"allowed_match_types"`
}

// AllocationConfig holds proportional allocation settings
type AllocationConfig struct {
	MinTargets         int      `yaml:"min_targets"`
	RemainderTolerance float64  `yaml:"remainder_tolerance"`
	WindowDays         int      `yaml:"window_days"`
	DepositMethods     []string `yaml:"deposit_methods"`
}

// APIConfig holds report API settings
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, text, json
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	m := matcher.DefaultConfig()
	a := allocator.DefaultConfig()

	return &Config{
		Storage: StorageConfig{
			Driver:       "sqlite3",
			DatabasePath: "reconciler.db",
		},
		Matching: MatchingConfig{
			DateWindowDays:       m.DateWindowDays,
			ToleranceWindowDays:  m.ToleranceWindowDays,
			AmountTolerance:      m.AmountTolerance.InexactFloat64(),
			AmountEpsilon:        m.AmountEpsilon.InexactFloat64(),
			MaxCandidates:        m.MaxCandidates,
			DatePenaltyPerDay:    m.DatePenaltyPerDay,
			StrongScoreThreshold: m.StrongScoreThreshold,
			AllowedMatchTypes:    []string{string(matcher.MatchTypeHint), string(matcher.MatchTypeExact)},
		},
		Allocation: AllocationConfig{
			MinTargets:         a.MinTargets,
			RemainderTolerance: a.RemainderTolerance.InexactFloat64(),
			WindowDays:         14,
			DepositMethods:     []string{"batch_deposit"},
		},
		API: APIConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "console",
			},
		},
	}
}

// Load reads and parses the config file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${DATABASE_URL})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.Driver = getEnv("DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DatabasePath = getEnv("DB_PATH", cfg.Storage.DatabasePath)
	cfg.Storage.DSN = getEnv("DB_DSN", cfg.Storage.DSN)

	cfg.Matching.DateWindowDays = getEnvInt("DATE_WINDOW_DAYS", cfg.Matching.DateWindowDays)
	cfg.Matching.ToleranceWindowDays = getEnvInt("TOLERANCE_WINDOW_DAYS", cfg.Matching.ToleranceWindowDays)
	cfg.Matching.AmountTolerance = getEnvFloat("AMOUNT_TOLERANCE", cfg.Matching.AmountTolerance)
	cfg.Matching.MaxCandidates = getEnvInt("MAX_CANDIDATES", cfg.Matching.MaxCandidates)
	cfg.Matching.StrongScoreThreshold = getEnvFloat("STRONG_SCORE_THRESHOLD", cfg.Matching.StrongScoreThreshold)
	cfg.Matching.AllowedMatchTypes = getEnvList("ALLOWED_MATCH_TYPES", cfg.Matching.AllowedMatchTypes)

	cfg.Allocation.MinTargets = getEnvInt("MIN_TARGETS", cfg.Allocation.MinTargets)
	cfg.Allocation.RemainderTolerance = getEnvFloat("REMAINDER_TOLERANCE", cfg.Allocation.RemainderTolerance)
	cfg.Allocation.WindowDays = getEnvInt("ALLOCATION_WINDOW_DAYS", cfg.Allocation.WindowDays)
	cfg.Allocation.DepositMethods = getEnvList("DEPOSIT_METHODS", cfg.Allocation.DepositMethods)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)

	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)

	return cfg
}

// LoadOrEnv loads path when it exists and falls back to environment
// variables otherwise. A file that exists but does not parse is an error.
func LoadOrEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return LoadFromEnv(), nil
	}
	return cfg, err
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite3":
		if c.Storage.DatabasePath == "" {
			return fmt.Errorf("%w: storage.database_path is required for sqlite3", ErrInvalid)
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalid, c.Storage.Driver)
	}

	if err := c.MatcherConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.AllocatorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if len(c.Matching.AllowedMatchTypes) == 0 {
		return fmt.Errorf("%w: matching.allowed_match_types must not be empty", ErrInvalid)
	}
	for _, t := range c.Matching.AllowedMatchTypes {
		if !matcher.MatchType(t).Valid() {
			return fmt.Errorf("%w: unknown match type %q", ErrInvalid, t)
		}
	}

	if c.Allocation.WindowDays < 0 {
		return fmt.Errorf("%w: allocation.window_days must be >= 0", ErrInvalid)
	}

	switch c.Observability.Logging.Format {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrInvalid, c.Observability.Logging.Format)
	}

	return nil
}

// MatcherConfig returns the candidate generator and scorer settings.
func (c *Config) MatcherConfig() matcher.Config {
	return matcher.Config{
		DateWindowDays:       c.Matching.DateWindowDays,
		ToleranceWindowDays:  c.Matching.ToleranceWindowDays,
		AmountEpsilon:        decimal.NewFromFloat(c.Matching.AmountEpsilon),
		AmountTolerance:      decimal.NewFromFloat(c.Matching.AmountTolerance),
		MaxCandidates:        c.Matching.MaxCandidates,
		DatePenaltyPerDay:    c.Matching.DatePenaltyPerDay,
		StrongScoreThreshold: c.Matching.StrongScoreThreshold,
	}
}

// AllocatorConfig returns the proportional allocator settings.
func (c *Config) AllocatorConfig() allocator.Config {
	return allocator.Config{
		MinTargets:         c.Allocation.MinTargets,
		RemainderTolerance: decimal.NewFromFloat(c.Allocation.RemainderTolerance),
	}
}

// AllowedMatchTypes returns the match types the applier may act on.
func (c *Config) AllowedMatchTypes() []matcher.MatchType {
	types := make([]matcher.MatchType, 0, len(c.Matching.AllowedMatchTypes))
	for _, t := range c.Matching.AllowedMatchTypes {
		types = append(types, matcher.MatchType(t))
	}
	return types
}

// DataSource returns the driver-specific connection string.
func (c *Config) DataSource() string {
	if c.Storage.Driver == "postgres" {
		return c.Storage.DSN
	}
	return c.Storage.DatabasePath
}

// getEnv retrieves a prefixed environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves a prefixed integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(EnvPrefix + key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
