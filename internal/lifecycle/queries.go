package lifecycle

import (
	"context"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// Reads reconcile and retry pending commits like commands do, but a
// persist failure never fails them: the in-memory view is authoritative.

// ListActivePosts returns live posts newest first, as seen by user.
func (f *Facade) ListActivePosts(ctx context.Context, user model.UserContext) ([]model.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)

	posts := f.content.Posts()
	out := make([]model.PostView, len(posts))
	for i, p := range posts {
		out[i] = p.View(user.Key())
	}
	return out, nil
}

// ListActiveBattles returns battles that are still voting or whose winner
// is still on display, newest first.
func (f *Facade) ListActiveBattles(ctx context.Context, user model.UserContext) ([]model.BattleView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)

	battles := f.content.Battles()
	out := make([]model.BattleView, len(battles))
	for i, b := range battles {
		out[i] = b.View(user.Key())
	}
	return out, nil
}

// ListSavedPosts returns the caller's rewind records newest first.
func (f *Facade) ListSavedPosts(ctx context.Context, user model.UserContext) ([]model.SavedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)
	return f.ledger.List(user), nil
}

// GetPost returns one live post.
func (f *Facade) GetPost(ctx context.Context, user model.UserContext, id string) (model.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)

	p, ok := f.content.Post(id)
	if !ok {
		return model.PostView{}, model.NewNotFound("post", id)
	}
	return p.View(user.Key()), nil
}

// GetBattle returns one retained battle.
func (f *Facade) GetBattle(ctx context.Context, user model.UserContext, id string) (model.BattleView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)

	b, ok := f.content.Battle(id)
	if !ok {
		return model.BattleView{}, model.NewNotFound("battle", id)
	}
	return b.View(user.Key()), nil
}

// RewindUsage returns the caller's quota position for the current month.
func (f *Facade) RewindUsage(ctx context.Context, user model.UserContext) (rewind.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	defer f.readLocked(ctx)
	return f.ledger.Usage(user), nil
}
