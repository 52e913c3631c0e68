package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := Flags("test")
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "lexicard.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Store.FlushDelay)
	assert.Equal(t, "fsrs", cfg.Scheduler.Algorithm)
	assert.InDelta(t, 0.9, cfg.Scheduler.DesiredRetention, 1e-9)
	assert.Equal(t, 20, cfg.Quiz.Size)
	assert.Equal(t, 4, cfg.Quiz.Options)
	assert.Equal(t, 15*time.Second, cfg.Quiz.SlowThreshold)
	assert.Equal(t, 5*time.Second, cfg.Quiz.FastThreshold)
	assert.Equal(t, 200, cfg.Quiz.YieldEvery)
	assert.Equal(t, "none", cfg.Sync.Backend)
	assert.Equal(t, 30*time.Second, cfg.Sync.Cooldown)
	assert.Equal(t, uint(3), cfg.Sync.Retries)
	assert.False(t, cfg.SyncEnabled())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /data/file.db
quiz:
  size: 30
  options: 5
sync:
  backend: file
  dir: /data/sync
log:
  level: debug
`), 0o644))

	t.Setenv("LEXICARD_QUIZ__SIZE", "40")
	t.Setenv("LEXICARD_SYNC__COOLDOWN", "1m")

	cfg, err := load(t, "--config", path, "--quiz.size", "50")
	require.NoError(t, err)

	assert.Equal(t, "/data/file.db", cfg.Database.Path, "file overrides default")
	assert.Equal(t, 5, cfg.Quiz.Options)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Sync.Cooldown, "env overrides default")
	assert.Equal(t, 50, cfg.Quiz.Size, "flag overrides env and file")
	assert.True(t, cfg.SyncEnabled())
	assert.Equal(t, "/data/sync", cfg.Sync.Dir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quiz:\n  size: 30\n"), 0o644))
	t.Setenv("LEXICARD_QUIZ__SIZE", "40")

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Quiz.Size)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"algorithm", []string{"--scheduler.algorithm", "sm2"}, "Algorithm"},
		{"retention", []string{"--scheduler.desired_retention", "1.5"}, "DesiredRetention"},
		{"thresholds", []string{"--quiz.slow_threshold", "2s"}, "SlowThreshold"},
		{"redis without addr", []string{"--sync.backend", "redis"}, "RedisAddr"},
		{"short secret", []string{"--sync.jwt_secret", "short"}, "JWTSecret"},
		{"log level", []string{"--log.level", "loud"}, "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to load config file")
}
