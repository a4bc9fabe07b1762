package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Checkpoint backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ViewportIncrement means "scroll by one window height"
const ViewportIncrement = 0

// Config holds all application configuration
type Config struct {
	Version  int                    `toml:"version"`
	Browser  BrowserConfig          `toml:"browser"`
	Harvest  HarvestConfig          `toml:"harvest"`
	Lists    map[string]ListProfile `toml:"lists"`
	SQLite   SQLiteConfig           `toml:"sqlite"`
	Redis    RedisConfig            `toml:"redis"`
	Events   EventsConfig           `toml:"events"`
	Logging  LoggingConfig          `toml:"logging"`
	Schedule ScheduleConfig         `toml:"schedule"`
}

type BrowserConfig struct {
	Headless bool `toml:"headless"`
	// NavigateTimeoutSec bounds page load plus the wait for the first list item
	NavigateTimeoutSec int `toml:"navigate_timeout_sec"`
}

type HarvestConfig struct {
	CheckpointBackend string `toml:"checkpoint_backend"`
	// CheckpointMaxBytes caps the file checkpoint; 0 means unlimited
	CheckpointMaxBytes int64 `toml:"checkpoint_max_bytes"`
	InlineLimit        int   `toml:"inline_limit"`
	NoGrowthLimit      int   `toml:"no_growth_limit"`
	BottomTolerancePx  int   `toml:"bottom_tolerance_px"`
	LongSettleMs       int   `toml:"long_settle_ms"`
	// ExportSizeLimit is the largest pretty-printed export before falling back to compact JSON
	ExportSizeLimit int `toml:"export_size_limit"`
}

// ListProfile tunes scrolling for one list type
type ListProfile struct {
	ScrollIncrementPx int `toml:"scroll_increment_px"`
	SettleDelayMs     int `toml:"settle_delay_ms"`
	AttemptCeiling    int `toml:"attempt_ceiling"`
}

type SQLiteConfig struct {
	// Path defaults to <cache dir>/xharvest.db
	Path string `toml:"path"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type EventsConfig struct {
	SQSQueueURL string `toml:"sqs_queue_url"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ScheduleConfig struct {
	Timezone string `toml:"timezone"`
	Jobs     []Job  `toml:"jobs"`
}

// Job is a harvest run on a cron expression
type Job struct {
	Name   string `toml:"name"`
	Cron   string `toml:"cron"`
	URL    string `toml:"url"`
	Output string `toml:"output"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Browser: BrowserConfig{
			Headless:           true,
			NavigateTimeoutSec: 30,
		},
		Harvest: HarvestConfig{
			CheckpointBackend: BackendFile,
			InlineLimit:       500,
			NoGrowthLimit:     10,
			BottomTolerancePx: 100,
			LongSettleMs:      2000,
			ExportSizeLimit:   50 << 20,
		},
		Lists: map[string]ListProfile{
			string(types.ListFollowers): {ScrollIncrementPx: 2160, SettleDelayMs: 1000, AttemptCeiling: 500},
			string(types.ListFollowing): {ScrollIncrementPx: 2160, SettleDelayMs: 1000, AttemptCeiling: 500},
			string(types.ListBookmarks): {ScrollIncrementPx: ViewportIncrement, SettleDelayMs: 3000, AttemptCeiling: 5000},
			string(types.ListTimeline):  {ScrollIncrementPx: ViewportIncrement, SettleDelayMs: 1500, AttemptCeiling: 1000},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "xharvest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Schedule: ScheduleConfig{
			Timezone: "Local",
			Jobs:     []Job{},
		},
	}
}

// Profile returns the scroll profile for a list type, falling back to the defaults
// for any unset field
func (c *Config) Profile(lt types.ListType) ListProfile {
	def := Default().Lists[string(lt)]
	p, ok := c.Lists[string(lt)]
	if !ok {
		return def
	}
	if p.ScrollIncrementPx < 0 {
		p.ScrollIncrementPx = def.ScrollIncrementPx
	}
	if p.SettleDelayMs <= 0 {
		p.SettleDelayMs = def.SettleDelayMs
	}
	if p.AttemptCeiling <= 0 {
		p.AttemptCeiling = def.AttemptCeiling
	}
	return p
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xharvest"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory holding checkpoints, the database and exports
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "xharvest"), nil
}

// SQLitePath resolves the database location
func (c *Config) SQLitePath() (string, error) {
	if c.SQLite.Path != "" {
		return c.SQLite.Path, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "xharvest.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreate loads the config, writing the defaults on first run.
// created reports whether a new file was written.
func LoadOrCreate() (cfg *Config, created bool, err error) {
	cfg, err = Load()
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	cfg = Default()
	if err := cfg.Save(); err != nil {
		return cfg, false, fmt.Errorf("could not save default config: %w", err)
	}
	return cfg, true, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// LoadDotEnv loads .env files from the working directory and the config directory.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	if dir, err := ConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
}

// LoadFromEnv applies XHARVEST_* environment overrides
func (c *Config) LoadFromEnv() error {
	if level := os.Getenv("XHARVEST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("XHARVEST_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if headless := os.Getenv("XHARVEST_HEADLESS"); headless != "" {
		v, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("XHARVEST_HEADLESS: %w", err)
		}
		c.Browser.Headless = v
	}
	if backend := os.Getenv("XHARVEST_CHECKPOINT_BACKEND"); backend != "" {
		c.Harvest.CheckpointBackend = strings.ToLower(backend)
	}
	if addr := os.Getenv("XHARVEST_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pass := os.Getenv("XHARVEST_REDIS_PASSWORD"); pass != "" {
		c.Redis.Password = pass
	}
	if path := os.Getenv("XHARVEST_SQLITE_PATH"); path != "" {
		c.SQLite.Path = path
	}
	if url := os.Getenv("XHARVEST_SQS_QUEUE_URL"); url != "" {
		c.Events.SQSQueueURL = url
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch c.Harvest.CheckpointBackend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Harvest.CheckpointBackend)
	}
	if c.Harvest.CheckpointBackend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("redis backend requires redis.addr")
	}
	if c.Harvest.InlineLimit < 0 {
		return errors.New("harvest.inline_limit must not be negative")
	}
	if c.Harvest.NoGrowthLimit < 0 {
		return errors.New("harvest.no_growth_limit must not be negative")
	}
	if c.Harvest.BottomTolerancePx < 0 {
		return errors.New("harvest.bottom_tolerance_px must not be negative")
	}
	if c.Harvest.CheckpointMaxBytes < 0 {
		return errors.New("harvest.checkpoint_max_bytes must not be negative")
	}

	for name, p := range c.Lists {
		if !types.ListType(name).Valid() {
			return fmt.Errorf("unknown list type %q in [lists]", name)
		}
		if p.ScrollIncrementPx < 0 || p.SettleDelayMs < 0 || p.AttemptCeiling < 0 {
			return fmt.Errorf("lists.%s: values must not be negative", name)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	seen := make(map[string]bool, len(c.Schedule.Jobs))
	for _, j := range c.Schedule.Jobs {
		if j.Name == "" {
			return errors.New("schedule job without a name")
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate schedule job %q", j.Name)
		}
		seen[j.Name] = true
		if _, err := parser.Parse(j.Cron); err != nil {
			return fmt.Errorf("schedule job %q: invalid cron expression: %w", j.Name, err)
		}
		if j.URL == "" {
			return fmt.Errorf("schedule job %q: missing url", j.Name)
		}
	}
	return nil
}
