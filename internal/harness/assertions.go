package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// check evaluates one assertion against the final state.
func (h *Harness) check(ctx context.Context, a Assertion, res *Result) error {
	switch a.Type {
	case AssertPostExists:
		id, err := h.resolve(a.Post)
		if err != nil {
			return err
		}
		p, ok := res.Final.Content.Posts[id]
		if !ok {
			return fmt.Errorf("post %s does not exist", id)
		}
		if !a.ExpiresAt.IsZero() && !p.ExpiresAt.Equal(a.ExpiresAt) {
			return fmt.Errorf("post %s expires at %s, want %s",
				id, p.ExpiresAt.Format(time.RFC3339), a.ExpiresAt.Format(time.RFC3339))
		}

	case AssertPostAbsent:
		id, err := h.resolve(a.Post)
		if err != nil {
			return err
		}
		if _, ok := res.Final.Content.Posts[id]; ok {
			return fmt.Errorf("post %s still exists", id)
		}

	case AssertBattleWinner:
		id, err := h.resolve(a.Battle)
		if err != nil {
			return err
		}
		want, err := h.resolve(a.Winner)
		if err != nil {
			return err
		}
		b, ok := res.Final.Content.Battles[id]
		if !ok {
			return fmt.Errorf("battle %s does not exist", id)
		}
		if b.IsActive {
			return fmt.Errorf("battle %s is still active", id)
		}
		if b.WinnerID != want {
			return fmt.Errorf("battle %s winner is %s, want %s", id, b.WinnerID, want)
		}

	case AssertBattleAbsent:
		id, err := h.resolve(a.Battle)
		if err != nil {
			return err
		}
		if _, ok := res.Final.Content.Battles[id]; ok {
			return fmt.Errorf("battle %s is still retained", id)
		}

	case AssertUsage:
		u, err := h.facade.RewindUsage(ctx, model.UserContext{UserID: a.User})
		if err != nil {
			return err
		}
		if a.Used != nil && u.Used != *a.Used {
			return fmt.Errorf("user %s used %d, want %d", a.User, u.Used, *a.Used)
		}
		if a.Max != nil && u.Max != *a.Max {
			return fmt.Errorf("user %s max %d, want %d", a.User, u.Max, *a.Max)
		}
		if a.Credits != nil && u.Credits != *a.Credits {
			return fmt.Errorf("user %s credits %d, want %d", a.User, u.Credits, *a.Credits)
		}

	case AssertEventCount:
		if got := res.Count(model.EventKind(a.Event)); got != a.Count {
			return fmt.Errorf("%d %s events, want %d", got, a.Event, a.Count)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
