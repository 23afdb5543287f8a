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

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  mode: dev
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Monitoring.SampleIntervalSeconds)
	assert.Equal(t, 3, cfg.Monitoring.MaxSessionScreenshots)
	assert.Equal(t, 5, cfg.Monitoring.SessionCooldownMinutes)
	assert.Equal(t, 30, cfg.Monitoring.HashLookbackMinutes)
	assert.Equal(t, 5, cfg.Monitoring.AlertDedupMinutes)
	assert.Equal(t, 70, cfg.Monitoring.WorkConfidence)
	assert.Equal(t, 60, cfg.Monitoring.NonWorkConfidence)
	assert.Equal(t, 50, cfg.Monitoring.UncertainConfidence)
	assert.False(t, cfg.Monitoring.LegacyEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
monitoring:
  max_session_screenshots: 5
  session_cooldown_minutes: 10
  legacy_enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Monitoring.MaxSessionScreenshots)
	assert.Equal(t, 10*time.Minute, cfg.Monitoring.SessionCooldown())
	assert.True(t, cfg.Monitoring.LegacyEnabled)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("CLICKHOUSE_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, `
database:
  host: clickhouse
  password: ${CLICKHOUSE_PASSWORD}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	m := MonitoringConfig{
		SampleIntervalSeconds: 60,
		DetectionCacheTTLMS:   2000,
		DetectionMinDelayMS:   1000,
		HashLookbackMinutes:   30,
		DailyUsageLimitHours:  2,
	}

	assert.Equal(t, time.Minute, m.SampleInterval())
	assert.Equal(t, 2*time.Second, m.DetectionCacheTTL())
	assert.Equal(t, time.Second, m.DetectionMinDelay())
	assert.Equal(t, 30*time.Minute, m.HashLookback())
	assert.Equal(t, 2*time.Hour, m.DailyUsageLimit())
}
