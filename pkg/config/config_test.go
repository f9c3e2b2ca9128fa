package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := Default()

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 40.0, c.Pipeline.TriggerThreshold)
	assert.Equal(t, 2.0, c.Pipeline.WindowSeconds)
	assert.Equal(t, 75*time.Millisecond, c.Pipeline.SweepInterval)
	assert.Equal(t, 10*time.Second, c.Routing.LockTTL)
	assert.Equal(t, 10000.0, c.Risk.TotalCapital)
	assert.Equal(t, 5.0, c.Risk.StopLossPct)
	assert.True(t, c.Execution.DryRun)

	// Fallback tables that struct defaults cannot express.
	assert.Equal(t, 100.0, c.Exchanges.Weights["binance"])
	assert.Contains(t, c.Exchanges.Tier1, "upbit")
	assert.Contains(t, c.Sources.TierS, "tg_alpha_intel")
	assert.Contains(t, c.Routing.DexKeywords, "uniswap")

	require.Len(t, c.Pipeline.FreshnessSteps, 4)
	assert.Equal(t, 1.3, c.Pipeline.FreshnessSteps[0].Multiplier)
	assert.Equal(t, 0.0, c.Pipeline.FreshnessSteps[3].WithinSeconds) // floor entry
	assert.NoError(t, c.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
environment: production
pipeline:
  trigger_threshold: 60
risk:
  total_capital: 25000
  static_blacklist: [SCAM, RUG]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 60.0, c.Pipeline.TriggerThreshold)
	assert.Equal(t, 25000.0, c.Risk.TotalCapital)
	assert.Equal(t, []string{"SCAM", "RUG"}, c.Risk.StaticBlacklist)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 5.0, c.Risk.MaxSingleTradePct)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Pipeline.TriggerThreshold = 0 }},
		{"zero window", func(c *Config) { c.Pipeline.WindowSeconds = 0 }},
		{"zero dedup capacity", func(c *Config) { c.Pipeline.DedupCapacity = 0 }},
		{"zero lock ttl", func(c *Config) { c.Routing.LockTTL = 0 }},
		{"zero capital", func(c *Config) { c.Risk.TotalCapital = 0 }},
		{"halt below reduce", func(c *Config) { c.Risk.DrawdownHaltPct = c.Risk.DrawdownReducePct }},
		{"inverted kelly band", func(c *Config) { c.Risk.KellyMaxFraction = 0.001 }},
		{"full stop loss", func(c *Config) { c.Risk.StopLossPct = 100 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"bad freshness multiplier", func(c *Config) { c.Pipeline.FreshnessSteps[0].Multiplier = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: production\n"), 0o644))

	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BUS_CONSUMER", "sigfuse-7")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.False(t, c.Execution.DryRun)
	assert.Equal(t, "sigfuse-7", c.Bus.Consumer)
}
