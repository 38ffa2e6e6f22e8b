package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PiperEve/BlueGhost/internal/lifecycle"
)

// Scenario is one scripted run of the lifecycle.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock reading.
	Start time.Time `yaml:"start"`

	// Config overrides the default lifecycle configuration.
	Config Overrides `yaml:"config,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Overrides replaces lifecycle defaults. Zero values keep the default.
type Overrides struct {
	PostTTL             time.Duration `yaml:"post_ttl,omitempty"`
	BattleDuration      time.Duration `yaml:"battle_duration,omitempty"`
	WinnerExtension     time.Duration `yaml:"winner_extension,omitempty"`
	OneVotePerUser      bool          `yaml:"one_vote_per_user,omitempty"`
	FreeQuota           int           `yaml:"free_quota,omitempty"`
	PremiumQuota        int           `yaml:"premium_quota,omitempty"`
	BonusCredits        int           `yaml:"bonus_credits,omitempty"`
	Timezone            string        `yaml:"timezone,omitempty"`
	PurgeStaleFreeSaves bool          `yaml:"purge_stale_free_saves,omitempty"`
}

// Apply returns cfg with the overrides applied.
func (o Overrides) Apply(cfg lifecycle.Config) (lifecycle.Config, error) {
	if o.PostTTL > 0 {
		cfg.PostTTL = o.PostTTL
	}
	if o.BattleDuration > 0 {
		cfg.BattleDuration = o.BattleDuration
	}
	if o.WinnerExtension > 0 {
		cfg.WinnerExtension = o.WinnerExtension
	}
	cfg.OneVotePerUser = cfg.OneVotePerUser || o.OneVotePerUser
	if o.FreeQuota > 0 {
		cfg.Rewind.FreeQuota = o.FreeQuota
	}
	if o.PremiumQuota > 0 {
		cfg.Rewind.PremiumQuota = o.PremiumQuota
	}
	if o.BonusCredits > 0 {
		cfg.Rewind.BonusCredits = o.BonusCredits
	}
	if o.Timezone != "" {
		loc, err := time.LoadLocation(o.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("config.timezone: %w", err)
		}
		cfg.Rewind.Location = loc
	}
	cfg.Rewind.PurgeStaleFreeSaves = cfg.Rewind.PurgeStaleFreeSaves || o.PurgeStaleFreeSaves
	return cfg, nil
}

// Step advances the clock, performs one action, or both.
type Step struct {
	// Advance moves the clock forward before the action.
	Advance time.Duration `yaml:"advance,omitempty"`

	// As is the acting user id.
	As string `yaml:"as,omitempty"`

	// Entitled marks the actor as holding the entitlement for this step.
	Entitled bool `yaml:"entitled,omitempty"`

	// Do names the action; see the package documentation.
	Do string `yaml:"do,omitempty"`

	// Args are the action arguments.
	Args map[string]string `yaml:"args,omitempty"`

	// ExpectError is the domain error code the action must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// SaveAs captures the id the action produced.
	SaveAs string `yaml:"save_as,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type string `yaml:"type"`

	Post   string `yaml:"post,omitempty"`
	Battle string `yaml:"battle,omitempty"`
	Winner string `yaml:"winner,omitempty"`

	// ExpiresAt is checked by post_exists when set.
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`

	// User, Used, Max and Credits are checked by usage; nil fields are skipped.
	User    string `yaml:"user,omitempty"`
	Used    *int   `yaml:"used,omitempty"`
	Max     *int   `yaml:"max,omitempty"`
	Credits *int   `yaml:"credits,omitempty"`

	// Event and Count are checked by event_count.
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Action names.
const (
	OpCreatePost   = "create_post"
	OpDeletePost   = "delete_post"
	OpReact        = "react"
	OpStartBattle  = "start_battle"
	OpVote         = "vote"
	OpSave         = "save"
	OpPurchase     = "purchase"
	OpDeleteSaved  = "delete_saved"
	OpTick         = "tick"
	OpMonthlyReset = "monthly_reset"
)

var requiredArgs = map[string][]string{
	OpCreatePost:   nil,
	OpDeletePost:   {"post"},
	OpReact:        {"post", "reaction"},
	OpStartBattle:  {"original"},
	OpVote:         {"battle", "side"},
	OpSave:         {"post"},
	OpPurchase:     nil,
	OpDeleteSaved:  {"saved"},
	OpTick:         nil,
	OpMonthlyReset: nil,
}

// Assertion type constants.
const (
	AssertPostExists   = "post_exists"
	AssertPostAbsent   = "post_absent"
	AssertBattleWinner = "battle_winner"
	AssertBattleAbsent = "battle_absent"
	AssertUsage        = "usage"
	AssertEventCount   = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	var out []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", i)
		}
		if step.Do == "" {
			if step.Advance == 0 {
				return fmt.Errorf("steps[%d]: advance or do is required", i)
			}
			if step.ExpectError != "" || step.SaveAs != "" || len(step.Args) > 0 {
				return fmt.Errorf("steps[%d]: args, expect_error and save_as need do", i)
			}
			continue
		}
		required, ok := requiredArgs[step.Do]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Do)
		}
		for _, name := range required {
			if step.Args[name] == "" {
				return fmt.Errorf("steps[%d]: %s requires arg %q", i, step.Do, name)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPostExists, AssertPostAbsent:
		if a.Post == "" {
			return fmt.Errorf("assertions[%d]: post is required for %s", index, a.Type)
		}
	case AssertBattleWinner:
		if a.Battle == "" || a.Winner == "" {
			return fmt.Errorf("assertions[%d]: battle and winner are required for battle_winner", index)
		}
	case AssertBattleAbsent:
		if a.Battle == "" {
			return fmt.Errorf("assertions[%d]: battle is required for battle_absent", index)
		}
	case AssertUsage:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for usage", index)
		}
		if a.Used == nil && a.Max == nil && a.Credits == nil {
			return fmt.Errorf("assertions[%d]: usage needs at least one of used, max, credits", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
