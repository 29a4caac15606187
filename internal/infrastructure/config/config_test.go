package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	m := cfg.MatcherConfig()
	assert.Equal(t, 2, m.DateWindowDays)
	assert.Equal(t, 14, m.ToleranceWindowDays)
	assert.True(t, decimal.NewFromInt(1).Equal(m.AmountTolerance))
	assert.True(t, decimal.RequireFromString("0.01").Equal(m.AmountEpsilon))
	assert.Equal(t, 5, m.MaxCandidates)

	a := cfg.AllocatorConfig()
	assert.Equal(t, 2, a.MinTargets)
	assert.True(t, decimal.RequireFromString("0.05").Equal(a.RemainderTolerance))

	assert.Equal(t, []matcher.MatchType{matcher.MatchTypeHint, matcher.MatchTypeExact}, cfg.AllowedMatchTypes())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Setenv("TEST_RECONCILER_DSN", "postgres://localhost/recon")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  driver: postgres
  dsn: ${TEST_RECONCILER_DSN}
matching:
  amount_tolerance: 2.50
  allowed_match_types: [hint, exact_amount_date, amount_date_tolerance]
allocation:
  deposit_methods: [batch_deposit, ach_batch]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres://localhost/recon", cfg.DataSource())
	assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.MatcherConfig().AmountTolerance))
	assert.Len(t, cfg.AllowedMatchTypes(), 3)
	assert.Equal(t, []string{"batch_deposit", "ach_batch"}, cfg.Allocation.DepositMethods)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Matching.DateWindowDays)
	assert.Equal(t, 2, cfg.Allocation.MinTargets)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "test.db")
	t.Setenv("RECONCILER_MIN_TARGETS", "3")
	t.Setenv("RECONCILER_DEPOSIT_METHODS", "batch_deposit, lockbox")
	t.Setenv("RECONCILER_LOG_FORMAT", "json")

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 3, cfg.Allocation.MinTargets)
	assert.Equal(t, []string{"batch_deposit", "lockbox"}, cfg.Allocation.DepositMethods)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
}

func TestLoadOrEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "from-env.db")

	cfg, err := LoadOrEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Storage.DatabasePath)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("matching: [not, a, map"), 0o644))
	_, err = LoadOrEnv(bad)
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"negative tolerance", func(c *Config) { c.Matching.AmountTolerance = -1 }},
		{"negative window", func(c *Config) { c.Matching.DateWindowDays = -2 }},
		{"unknown match type", func(c *Config) { c.Matching.AllowedMatchTypes = []string{"fuzzy"} }},
		{"empty allow-list", func(c *Config) { c.Matching.AllowedMatchTypes = nil }},
		{"threshold above one", func(c *Config) { c.Matching.StrongScoreThreshold = 1.2 }},
		{"min targets below two", func(c *Config) { c.Allocation.MinTargets = 1 }},
		{"negative remainder tolerance", func(c *Config) { c.Allocation.RemainderTolerance = -0.01 }},
		{"unknown log format", func(c *Config) { c.Observability.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
