package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
engine:
  symbols: [EURUSD]
`

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, []string{"M5"}, c.Engine.Timeframes)
	assert.Equal(t, []string{"fvg"}, c.Engine.Elements)
	assert.Equal(t, 30, c.Engine.HistoryDays)
	assert.Equal(t, 60, c.Engine.PollSeconds)
	assert.Equal(t, 10*time.Minute, c.Engine.LockTTL)
	assert.Equal(t, 1.5, c.Detectors.DisplacementK)
	assert.Equal(t, "both", c.Detectors.FillRule)
	assert.Equal(t, 12, c.Scenario.ExpiryHours)
	assert.True(t, c.Scenario.TPPreferZones)
	assert.Equal(t, "H1", c.Trend.Timeframe)
	assert.Equal(t, 30*time.Second, c.Server.CacheTTL)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.True(t, c.UsesClickHouse())
}

func TestParse_ExplicitFalseOverridesDefault(t *testing.T) {
	c, err := Parse([]byte(minimalYAML + `
scenario:
  tp_prefer_zones: false
`))
	require.NoError(t, err)
	assert.False(t, c.Scenario.TPPreferZones)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"no symbols":      "engine:\n  timeframes: [M5]\n",
		"bad element":     minimalYAML + "  elements: [fvg, wedge]\n",
		"bad timeframe":   minimalYAML + "  timeframes: [M7]\n",
		"poll too short":  minimalYAML + "  scheduler_poll_seconds: 5\n",
		"bad fill rule":   minimalYAML + "detectors:\n  fill_rule: half\n",
		"parquet no dir":  minimalYAML + "source:\n  type: parquet\n",
		"kafka no broker": minimalYAML + "kafka:\n  enabled: true\n",
		"collect no kafka": minimalYAML + "log:\n  collect: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	env := map[string]string{
		"AUTO_EYE_SYMBOLS":         "XAUUSD, GBPUSD,XAUUSD",
		"AUTO_EYE_OUTPUT_DIR":      "/data/out",
		"AUTO_EYE_KAFKA_BROKERS":   "k1:9092,k2:9092",
		"AUTO_EYE_REDIS_HOST":      "redis",
		"AUTO_EYE_CLICKHOUSE_HOST": "ch",
		"AUTO_EYE_SERVER_PORT":     "9090",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	require.NoError(t, c.applyEnv(lookup))

	assert.Equal(t, []string{"XAUUSD", "GBPUSD"}, c.Engine.Symbols)
	assert.Equal(t, "/data/out", c.Engine.OutputDir)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis", c.Redis.Host)
	assert.Equal(t, "ch", c.ClickHouse.Host)
	assert.Equal(t, 9090, c.Server.Port)

	env["AUTO_EYE_SERVER_PORT"] = "http"
	assert.Error(t, c.applyEnv(lookup))
}

func TestLoad_SampleConfig(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("sample config not present")
	}
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, c.Engine.Symbols)
	assert.Equal(t, "XAUUSD", c.Engine.SymbolMap["GOLD"])
}
