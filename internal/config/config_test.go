package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	lc, err := cfg.LifecycleConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, lc.PostTTL)
	assert.Equal(t, 48*time.Hour, lc.WinnerExtension)
	assert.Equal(t, 3, lc.Rewind.FreeQuota)
	assert.Equal(t, 10, lc.Rewind.PremiumQuota)
	assert.Equal(t, 5, lc.Rewind.BonusCredits)
	assert.Equal(t, time.UTC, lc.Rewind.Location)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
lifecycle:
  post_ttl: 12h
  one_vote_per_user: true
rewind:
  free_quota: 1
  purge_stale_free_saves: true
storage:
  driver: memory
scheduler:
  reconcile: "@every 1m"
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 12*time.Hour, cfg.Lifecycle.PostTTL)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.BattleDuration, "unset keys keep defaults")
	assert.True(t, cfg.Lifecycle.OneVotePerUser)
	assert.Equal(t, 1, cfg.Rewind.FreeQuota)
	assert.Equal(t, 10, cfg.Rewind.PremiumQuota)
	assert.True(t, cfg.Rewind.PurgeStaleFreeSaves)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "@every 1m", cfg.Scheduler.Reconcile)
	assert.Equal(t, "0 0 1 * *", cfg.Scheduler.MonthlyReset)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_SchemaErrors(t *testing.T) {
	cases := map[string]string{
		"unknown section":  "lifecycel:\n  post_ttl: 1h\n",
		"unknown key":      "lifecycle:\n  post_tll: 1h\n",
		"bad duration":     "lifecycle:\n  post_ttl: tomorrow\n",
		"number duration":  "lifecycle:\n  post_ttl: 30\n",
		"bad driver":       "storage:\n  driver: mongo\n",
		"negative credits": "rewind:\n  bonus_credits: -1\n",
		"zero quota":       "rewind:\n  free_quota: 0\n",
		"bad level":        "log:\n  level: loud\n",
		"bad sink":         "notify:\n  sinks: [email]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config schema")
		})
	}
}

func TestParse_SemanticErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"premium below free": {
			doc:  "rewind:\n  free_quota: 5\n  premium_quota: 2\n",
			want: "premium_quota (2) must not be below free_quota (5)",
		},
		"postgres without dsn": {
			doc:  "storage:\n  driver: postgres\n",
			want: "storage.dsn is required",
		},
		"redis sink without address": {
			doc:  "notify:\n  sinks: [log, redis]\n",
			want: "required for the redis sink",
		},
		"bad cron": {
			doc:  "scheduler:\n  reconcile: every five minutes\n",
			want: "scheduler.reconcile",
		},
		"bad timezone": {
			doc:  "rewind:\n  timezone: Mars/Olympus\n",
			want: "rewind.timezone",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParse_SchedulerDisabledSkipsCron(t *testing.T) {
	_, err := Parse([]byte("scheduler:\n  enabled: false\n  reconcile: nonsense\n"))
	assert.NoError(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blueghost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n  path: /tmp/x.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.StorageOptions().Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNotifyRedisAddrFallback(t *testing.T) {
	cfg := Default()
	cfg.Storage.RedisAddr = "cache:6379"
	assert.Equal(t, "cache:6379", cfg.NotifyRedisAddr())
	cfg.Notify.RedisAddr = "bus:6379"
	assert.Equal(t, "bus:6379", cfg.NotifyRedisAddr())
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
