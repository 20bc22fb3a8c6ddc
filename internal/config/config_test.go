package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "9090"
  mode: release
database:
  driver: memory
redis:
  enabled: false
  cache_ttl_seconds: 120
session:
  sweep_interval_seconds: 5
  grade_async: true
  grading_workers: 2
  retry_attempts: 4
  retry_base_delay_ms: 50
  retry_max_delay_ms: 400
`

func TestDecodeSessionSection(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(sampleYAML)))

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL())
	assert.Equal(t, 5*time.Second, cfg.Session.SweepInterval())
	assert.True(t, cfg.Session.GradeAsync)
	assert.Equal(t, 2, cfg.Session.Workers())
	assert.Equal(t, 4, cfg.Session.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Session.RetryBaseDelay())
	assert.Equal(t, 400*time.Millisecond, cfg.Session.RetryMaxDelay())
}

func TestDefaultsApplyWhenSectionMissing(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("server:\n  port: \"8081\"\n")))

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Session.RetryAttempts)
	assert.Equal(t, 30*time.Second, cfg.Session.SweepInterval())
	assert.Equal(t, 4, cfg.Session.Workers())
	assert.Equal(t, "logs/assessment-engine.log", cfg.Log.File)
	assert.Empty(t, cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "postgres"}, Session: SessionConfig{RetryAttempts: 1}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Database: DatabaseConfig{Driver: "memory"}, Session: SessionConfig{RetryAttempts: 0}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Database: DatabaseConfig{Driver: "memory"}, Session: SessionConfig{
		RetryAttempts: 2, RetryBaseDelayMs: 500, RetryMaxDelayMs: 100,
	}}
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.True(t, cfg.Session.GradeAsync)
}
