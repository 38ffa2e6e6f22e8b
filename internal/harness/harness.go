package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PiperEve/BlueGhost/internal/lifecycle"
	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/notify"
	"github.com/PiperEve/BlueGhost/internal/persist"
	"github.com/PiperEve/BlueGhost/internal/testutil"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	facade *lifecycle.Facade
	clock  *testutil.ManualClock
	events *notify.Recorder
	refs   map[string]string
}

// action runs one bound step and returns the ids it produced, keyed by
// suffix ("" for the primary id).
type action func(ctx context.Context, user model.UserContext) (map[string]string, error)

// Run executes a scenario against a fresh facade and returns the result.
//
// A returned error means the scenario itself is broken (unknown reference,
// bad config). Expectation and assertion failures are reported in
// Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenario.Config.Apply(lifecycle.DefaultConfig())
	if err != nil {
		return nil, err
	}

	h := &Harness{
		clock:  testutil.NewManualClock(scenario.Start),
		events: &notify.Recorder{},
		refs:   make(map[string]string),
	}
	h.facade = lifecycle.New(cfg,
		lifecycle.WithClock(h.clock),
		lifecycle.WithIDs(testutil.NewSequentialIDs("id")),
		lifecycle.WithBackend(persist.NewMemory()),
		lifecycle.WithNotifier(h.events),
		lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if step.Advance > 0 {
			h.clock.Advance(step.Advance)
		}
		if step.Do == "" {
			continue
		}

		run, err := h.bind(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Do, err)
		}
		user := model.UserContext{UserID: step.As, DisplayName: step.As, Entitled: step.Entitled}
		ids, err := run(ctx, user)
		h.expect(i, step, err, result)
		if err != nil || step.SaveAs == "" {
			continue
		}
		for suffix, id := range ids {
			name := step.SaveAs
			if suffix != "" {
				name += "." + suffix
			}
			h.refs[name] = id
		}
	}

	snap, err := h.facade.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("final snapshot: %w", err)
	}
	result.Final = snap
	result.Events = h.events.Events()
	result.Now = h.clock.Now()
	for k, v := range h.refs {
		result.Refs[k] = v
	}

	for i, a := range scenario.Assertions {
		if err := h.check(ctx, a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// expect compares a step outcome with its expect_error.
func (h *Harness) expect(i int, step Step, err error, result *Result) {
	want := step.ExpectError
	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", i, step.Do, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected %s, got success", i, step.Do, want))
	case want != "" && string(model.CodeOf(err)) != want:
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected %s, got %v", i, step.Do, want, err))
	}
}

// resolve maps "$name" to a captured id and passes anything else through.
func (h *Harness) resolve(v string) (string, error) {
	name, ok := strings.CutPrefix(v, "$")
	if !ok {
		return v, nil
	}
	id, ok := h.refs[name]
	if !ok {
		return "", fmt.Errorf("unknown reference %q", v)
	}
	return id, nil
}

func (h *Harness) bind(step Step) (action, error) {
	args := make(map[string]string, len(step.Args))
	for k, v := range step.Args {
		id, err := h.resolve(v)
		if err != nil {
			return nil, err
		}
		args[k] = id
	}
	f := h.facade

	switch step.Do {
	case OpCreatePost:
		draft, err := draftFromArgs(args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			p, err := f.CreatePost(ctx, u, draft)
			return map[string]string{"": p.ID}, err
		}, nil

	case OpDeletePost:
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			_, err := f.DeletePost(ctx, u, args["post"])
			return nil, err
		}, nil

	case OpReact:
		kind, err := model.ParseReaction(args["reaction"])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			_, err := f.React(ctx, u, args["post"], kind)
			return nil, err
		}, nil

	case OpStartBattle:
		draft, err := draftFromArgs(args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			b, err := f.StartBattle(ctx, u, args["original"], draft)
			return map[string]string{"": b.ID, "challenge": b.ChallengePostID}, err
		}, nil

	case OpVote:
		side, err := model.ParseSide(args["side"])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			_, err := f.Vote(ctx, u, args["battle"], side)
			return nil, err
		}, nil

	case OpSave:
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			s, err := f.SaveToRewind(ctx, u, args["post"])
			return map[string]string{"": s.ID}, err
		}, nil

	case OpPurchase:
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			_, err := f.PurchaseEntitlement(ctx, u)
			return nil, err
		}, nil

	case OpDeleteSaved:
		return func(ctx context.Context, u model.UserContext) (map[string]string, error) {
			_, err := f.DeleteSavedPost(ctx, u, args["saved"])
			return nil, err
		}, nil

	case OpTick:
		return func(ctx context.Context, _ model.UserContext) (map[string]string, error) {
			_, err := f.Tick(ctx)
			return nil, err
		}, nil

	case OpMonthlyReset:
		return func(ctx context.Context, _ model.UserContext) (map[string]string, error) {
			_, err := f.MonthlyReset(ctx)
			return nil, err
		}, nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Do)
}

// draftFromArgs builds a draft from payload args. A draft without any
// payload arg is passed through so the facade can reject it.
func draftFromArgs(args map[string]string) (model.Draft, error) {
	seconds := 0
	if v := args["duration"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return model.Draft{}, fmt.Errorf("duration: %w", err)
		}
		seconds = n
	}

	var p model.Payload
	if v, ok := args["text"]; ok {
		p.Text = &model.TextPayload{Text: v}
	}
	if v, ok := args["voice"]; ok {
		p.Voice = &model.VoicePayload{URI: v, DurationSeconds: seconds}
	}
	if v, ok := args["music"]; ok {
		p.Music = &model.MusicPayload{TrackID: v, DurationSeconds: seconds, Caption: args["caption"]}
	}
	if v, ok := args["image"]; ok {
		p.Image = &model.ImagePayload{URI: v}
	}
	return model.Draft{Payload: p, Style: model.Style{Theme: args["theme"]}}, nil
}
