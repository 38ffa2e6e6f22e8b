package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/lifecycle"
)

const minimalYAML = `
name: minimal
description: "one post"
start: 2025-07-10T12:00:00Z
steps:
  - as: alice
    do: create_post
    args: { text: "hi" }
    save_as: p
assertions:
  - type: post_exists
    post: $p
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC), s.Start.UTC())
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpCreatePost, s.Steps[0].Do)
	assert.Equal(t, "hi", s.Steps[0].Args["text"])
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, "$p", s.Assertions[0].Post)
}

func TestParseScenario_Durations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: durations
start: 2025-07-10T12:00:00Z
config:
  post_ttl: 2h
  battle_duration: 90m
steps:
  - advance: 25h
    do: tick
`))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, s.Config.PostTTL)
	assert.Equal(t, 90*time.Minute, s.Config.BattleDuration)
	assert.Equal(t, 25*time.Hour, s.Steps[0].Advance)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
start: 2025-07-10T12:00:00Z
steps:
  - do: tick
assertion:
  - type: post_absent
    post: x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "start: 2025-07-10T12:00:00Z\nsteps:\n  - do: tick\n",
			want: "name is required",
		},
		{
			name: "missing start",
			yaml: "name: x\nsteps:\n  - do: tick\n",
			want: "start is required",
		},
		{
			name: "no steps",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\n",
			want: "steps list is required",
		},
		{
			name: "empty step",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - as: alice\n",
			want: "advance or do is required",
		},
		{
			name: "unknown action",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - do: teleport\n",
			want: `unknown action "teleport"`,
		},
		{
			name: "missing arg",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - do: vote\n    args: { battle: b1 }\n",
			want: `vote requires arg "side"`,
		},
		{
			name: "args without action",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - advance: 1h\n    save_as: y\n",
			want: "need do",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - do: tick\nassertions:\n  - type: vibes\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "usage without fields",
			yaml: "name: x\nstart: 2025-07-10T12:00:00Z\nsteps:\n  - do: tick\nassertions:\n  - type: usage\n    user: u\n",
			want: "at least one of used, max, credits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(minimalYAML), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used by a.yaml")
}

func TestLoadScenarios_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)
	for _, s := range scenarios {
		assert.NotEmpty(t, s.Description, s.Name)
	}
}

func TestOverrides_Apply(t *testing.T) {
	cfg, err := Overrides{
		PostTTL:             time.Hour,
		OneVotePerUser:      true,
		FreeQuota:           1,
		PurgeStaleFreeSaves: true,
	}.Apply(lifecycle.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.PostTTL)
	assert.Equal(t, 24*time.Hour, cfg.BattleDuration)
	assert.True(t, cfg.OneVotePerUser)
	assert.Equal(t, 1, cfg.Rewind.FreeQuota)
	assert.Equal(t, 10, cfg.Rewind.PremiumQuota)
	assert.True(t, cfg.Rewind.PurgeStaleFreeSaves)

	_, err = Overrides{Timezone: "Not/AZone"}.Apply(lifecycle.DefaultConfig())
	require.Error(t, err)
}
