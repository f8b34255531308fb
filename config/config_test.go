package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGet(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Get("")
		require.NoError(t, err)
		assert.Equal(t, ":8090", cfg.HTTPAddr)
		assert.Equal(t, 2, cfg.MinQuorum)
		assert.Equal(t, "10", cfg.OutlierTolerancePct.String())
		assert.Equal(t, "10000", cfg.MinPoolUSD.String())
		assert.Equal(t, "50", cfg.ValueCapUSD.String())
		assert.Equal(t, 0.5, cfg.MinConfidence)
		assert.Equal(t, 7, cfg.MinAgeDays)
		assert.Equal(t, 60*time.Second, cfg.ConsensusCacheTTL)
		assert.Equal(t, 7*24*time.Hour, cfg.HistoryMaxAge)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
http_addr: ":9000"
min_quorum: 3
outlier_tolerance_pct: "15"
value_cap_usd: "100"
consensus_budget: 4s
source_timeout: 2s
feeds:
  "ethereum:0x01": "0x00000000000000000000000000000000000000f1"
`)
		cfg, err := Get(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.HTTPAddr)
		assert.Equal(t, 3, cfg.MinQuorum)
		assert.Equal(t, "15", cfg.OutlierTolerancePct.String())
		assert.Equal(t, "100", cfg.ValueCapUSD.String())
		assert.Equal(t, 4*time.Second, cfg.ConsensusBudget)
		assert.Len(t, cfg.Feeds, 1)
	})

	t.Run("secrets come from the environment", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "redis.internal:6380")
		t.Setenv("EVM_RPC_URL", "https://rpc.example.org")

		cfg, err := Get("")
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
		assert.Equal(t, "https://rpc.example.org", cfg.EVMRPCURL)
	})

	t.Run("malformed decimal is rejected", func(t *testing.T) {
		path := writeConfig(t, `value_cap_usd: "fifty"`)
		_, err := Get(path)
		assert.Error(t, err)
	})

	t.Run("min confidence above 1 is rejected", func(t *testing.T) {
		path := writeConfig(t, `min_confidence: 1.5`)
		_, err := Get(path)
		assert.Error(t, err)
	})

	t.Run("source timeout above budget is rejected", func(t *testing.T) {
		path := writeConfig(t, `
source_timeout: 10s
consensus_budget: 2s
`)
		_, err := Get(path)
		assert.Error(t, err)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Get("/nonexistent/config.yaml")
		assert.Error(t, err)
	})
}
