package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xharvest/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendFile, cfg.Harvest.CheckpointBackend)
	assert.Equal(t, 100, cfg.Harvest.BottomTolerancePx)
}

func TestDefaultProfiles(t *testing.T) {
	cfg := Default()

	followers := cfg.Profile(types.ListFollowers)
	assert.Equal(t, ListProfile{ScrollIncrementPx: 2160, SettleDelayMs: 1000, AttemptCeiling: 500}, followers)

	bookmarks := cfg.Profile(types.ListBookmarks)
	assert.Equal(t, ViewportIncrement, bookmarks.ScrollIncrementPx)
	assert.Equal(t, 3000, bookmarks.SettleDelayMs)
	assert.Equal(t, 5000, bookmarks.AttemptCeiling)
}

func TestProfileFillsUnsetFields(t *testing.T) {
	cfg := Default()
	cfg.Lists[string(types.ListFollowers)] = ListProfile{AttemptCeiling: 50}
	delete(cfg.Lists, string(types.ListTimeline))

	p := cfg.Profile(types.ListFollowers)
	assert.Equal(t, 50, p.AttemptCeiling)
	assert.Equal(t, 1000, p.SettleDelayMs)

	assert.Equal(t, 1000, cfg.Profile(types.ListTimeline).AttemptCeiling)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Harvest.CheckpointBackend = BackendSQLite
	cfg.Schedule.Jobs = []Job{{Name: "nightly", Cron: "0 3 * * *", URL: "https://x.com/i/bookmarks"}}
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, loaded.Harvest.CheckpointBackend)
	assert.Equal(t, cfg.Schedule.Jobs, loaded.Schedule.Jobs)
	assert.Equal(t, cfg.Lists, loaded.Lists)
}

func TestLoadFileKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[harvest]\ninline_limit = 42\n"), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Harvest.InlineLimit)
	assert.Equal(t, 10, cfg.Harvest.NoGrowthLimit)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XHARVEST_LOG_LEVEL", "debug")
	t.Setenv("XHARVEST_HEADLESS", "false")
	t.Setenv("XHARVEST_CHECKPOINT_BACKEND", "Redis")
	t.Setenv("XHARVEST_REDIS_ADDR", "cache:6380")
	t.Setenv("XHARVEST_SQS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/harvest")

	cfg := Default()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, BackendRedis, cfg.Harvest.CheckpointBackend)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/harvest", cfg.Events.SQSQueueURL)
}

func TestLoadFromEnvRejectsBadBool(t *testing.T) {
	t.Setenv("XHARVEST_HEADLESS", "sometimes")
	assert.Error(t, Default().LoadFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Harvest.CheckpointBackend = "s3" }},
		{"redis without addr", func(c *Config) {
			c.Harvest.CheckpointBackend = BackendRedis
			c.Redis.Addr = ""
		}},
		{"negative inline limit", func(c *Config) { c.Harvest.InlineLimit = -1 }},
		{"unknown list", func(c *Config) { c.Lists["likes"] = ListProfile{} }},
		{"negative ceiling", func(c *Config) {
			c.Lists[string(types.ListBookmarks)] = ListProfile{AttemptCeiling: -5}
		}},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad cron", func(c *Config) {
			c.Schedule.Jobs = []Job{{Name: "a", Cron: "every day", URL: "https://x.com/home"}}
		}},
		{"duplicate job", func(c *Config) {
			c.Schedule.Jobs = []Job{
				{Name: "a", Cron: "@daily", URL: "https://x.com/home"},
				{Name: "a", Cron: "@hourly", URL: "https://x.com/home"},
			}
		}},
		{"job without url", func(c *Config) {
			c.Schedule.Jobs = []Job{{Name: "a", Cron: "@daily"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
