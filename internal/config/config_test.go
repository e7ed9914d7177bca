package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ratebench", cfg.App.Name)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Ingest.AggregateOnImport)
	assert.NotEmpty(t, cfg.Ingest.DateLayouts)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "ratebench.yaml")
	content := []byte(`
database:
  dsn: postgres://file/ratebench
scheduler:
  interval: 30m
ingest:
  sheet: Rates
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("RATEBENCH_DATABASE_DSN", "postgres://env/ratebench")
	t.Setenv("RATEBENCH_CACHE_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/ratebench", cfg.Database.DSN)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "Rates", cfg.Ingest.Sheet)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RATEBENCH_APP_ENVIRONMENT=staging\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RATEBENCH_APP_ENVIRONMENT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Environment)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Scheduler: SchedulerConfig{Interval: time.Minute},
			Ingest:    IngestConfig{DateLayouts: []string{"2006-01-02"}},
			Export:    ExportConfig{MaxDataPoints: 10},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Scheduler.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Addr = "localhost:6379"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Alerting.Telegram.Enabled = true
	cfg.Alerting.Telegram.BotToken = "token"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ingest.DateLayouts = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.MaxOpenConns = 1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.MaxOpenConns = 2
	assert.NoError(t, cfg.Validate())
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 20, cfg.ResolveMaxPoints(20))
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it switches the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
