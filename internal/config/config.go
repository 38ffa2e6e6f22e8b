// Package config loads blueghost configuration.
//
// A config file is YAML. The raw document is first checked against an
// embedded CUE schema (types, enums, unknown keys), then decoded over the
// defaults, then checked for cross-field consistency by Validate.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/PiperEve/BlueGhost/internal/lifecycle"
	"github.com/PiperEve/BlueGhost/internal/persist"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Lifecycle Lifecycle `yaml:"lifecycle"`
	Rewind    Rewind    `yaml:"rewind"`
	Storage   Storage   `yaml:"storage"`
	Notify    Notify    `yaml:"notify"`
	Scheduler Scheduler `yaml:"scheduler"`
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
}

// Lifecycle configures post and battle durations.
type Lifecycle struct {
	PostTTL         time.Duration `yaml:"post_ttl"`
	BattleDuration  time.Duration `yaml:"battle_duration"`
	WinnerExtension time.Duration `yaml:"winner_extension"`
	OneVotePerUser  bool          `yaml:"one_vote_per_user"`
}

// Rewind configures the save quota.
type Rewind struct {
	FreeQuota           int    `yaml:"free_quota"`
	PremiumQuota        int    `yaml:"premium_quota"`
	BonusCredits        int    `yaml:"bonus_credits"`
	Timezone            string `yaml:"timezone"`
	PurgeStaleFreeSaves bool   `yaml:"purge_stale_free_saves"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Notify selects event sinks.
type Notify struct {
	Sinks     []string `yaml:"sinks"`
	RedisAddr string   `yaml:"redis_addr"`
	Channel   string   `yaml:"channel"`
}

// Scheduler configures the background jobs run by "serve".
type Scheduler struct {
	Enabled      bool          `yaml:"enabled"`
	Reconcile    string        `yaml:"reconcile"`
	MonthlyReset string        `yaml:"monthly_reset"`
	Timezone     string        `yaml:"timezone"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Lifecycle: Lifecycle{
			PostTTL:         24 * time.Hour,
			BattleDuration:  24 * time.Hour,
			WinnerExtension: 48 * time.Hour,
		},
		Rewind: Rewind{
			FreeQuota:    rewind.DefaultFreeQuota,
			PremiumQuota: rewind.DefaultPremiumQuota,
			BonusCredits: rewind.DefaultBonusCredits,
			Timezone:     "UTC",
		},
		Storage: Storage{
			Driver:    "sqlite",
			Path:      "blueghost.db",
			KeyPrefix: persist.DefaultKeyPrefix,
		},
		Notify: Notify{
			Sinks: []string{"log"},
		},
		Scheduler: Scheduler{
			Enabled:      true,
			Reconcile:    "@every 5m",
			MonthlyReset: "0 0 1 * *",
			Timezone:     "UTC",
			JobTimeout:   30 * time.Second,
		},
		HTTP: HTTP{Addr: ":8080"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load reads and parses the file at path. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := checkSchema(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if len(raw) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkSchema unifies the raw document with #Config.
func checkSchema(raw map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Lifecycle.PostTTL <= 0 {
		add("lifecycle.post_ttl must be positive")
	}
	if c.Lifecycle.BattleDuration <= 0 {
		add("lifecycle.battle_duration must be positive")
	}
	if c.Lifecycle.WinnerExtension <= 0 {
		add("lifecycle.winner_extension must be positive")
	}

	if c.Rewind.FreeQuota < 1 {
		add("rewind.free_quota must be at least 1")
	}
	if c.Rewind.PremiumQuota < c.Rewind.FreeQuota {
		add("rewind.premium_quota (%d) must not be below free_quota (%d)", c.Rewind.PremiumQuota, c.Rewind.FreeQuota)
	}
	if c.Rewind.BonusCredits < 0 {
		add("rewind.bonus_credits must not be negative")
	}
	if _, err := loadLocation(c.Rewind.Timezone); err != nil {
		add("rewind.timezone: %v", err)
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			add("storage.path is required for the sqlite driver")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			add("storage.redis_addr is required for the redis driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			add("storage.dsn is required for the postgres driver")
		}
	default:
		add("storage.driver %q is not one of memory, sqlite, redis, postgres", c.Storage.Driver)
	}

	for _, sink := range c.Notify.Sinks {
		switch sink {
		case "log":
		case "redis":
			if c.NotifyRedisAddr() == "" {
				add("notify.redis_addr (or storage.redis_addr) is required for the redis sink")
			}
		default:
			add("notify sink %q is not one of log, redis", sink)
		}
	}

	if c.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"reconcile":     c.Scheduler.Reconcile,
			"monthly_reset": c.Scheduler.MonthlyReset,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				add("scheduler.%s: %v", name, err)
			}
		}
		if _, err := loadLocation(c.Scheduler.Timezone); err != nil {
			add("scheduler.timezone: %v", err)
		}
		if c.Scheduler.JobTimeout <= 0 {
			add("scheduler.job_timeout must be positive")
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format %q is not one of text, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// NotifyRedisAddr returns the Redis address for the pub/sub sink, falling
// back to the storage address.
func (c Config) NotifyRedisAddr() string {
	if c.Notify.RedisAddr != "" {
		return c.Notify.RedisAddr
	}
	return c.Storage.RedisAddr
}

// LifecycleConfig converts to the facade configuration.
func (c Config) LifecycleConfig() (lifecycle.Config, error) {
	loc, err := loadLocation(c.Rewind.Timezone)
	if err != nil {
		return lifecycle.Config{}, fmt.Errorf("rewind.timezone: %w", err)
	}
	return lifecycle.Config{
		PostTTL:         c.Lifecycle.PostTTL,
		BattleDuration:  c.Lifecycle.BattleDuration,
		WinnerExtension: c.Lifecycle.WinnerExtension,
		OneVotePerUser:  c.Lifecycle.OneVotePerUser,
		Rewind: rewind.Policy{
			FreeQuota:           c.Rewind.FreeQuota,
			PremiumQuota:        c.Rewind.PremiumQuota,
			BonusCredits:        c.Rewind.BonusCredits,
			Location:            loc,
			PurgeStaleFreeSaves: c.Rewind.PurgeStaleFreeSaves,
		},
	}, nil
}

// StorageOptions converts to persist.Options.
func (c Config) StorageOptions() persist.Options {
	return persist.Options{
		Driver:    c.Storage.Driver,
		Path:      c.Storage.Path,
		DSN:       c.Storage.DSN,
		RedisAddr: c.Storage.RedisAddr,
		KeyPrefix: c.Storage.KeyPrefix,
	}
}

// SchedulerLocation returns the scheduler's time zone.
func (c Config) SchedulerLocation() (*time.Location, error) {
	return loadLocation(c.Scheduler.Timezone)
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
