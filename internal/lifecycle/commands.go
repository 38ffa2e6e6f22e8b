package lifecycle

import (
	"context"
	"strconv"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// CreatePost publishes a new ghost.
func (f *Facade) CreatePost(ctx context.Context, user model.UserContext, draft model.Draft) (model.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	p, err := f.content.CreatePost(user, draft)
	if err != nil {
		return model.PostView{}, f.finishLocked(ctx, err)
	}
	f.pending.content = true
	f.pending.emit(model.Event{
		Kind:    model.EventPostCreated,
		At:      now,
		UserID:  user.Key(),
		PostID:  p.ID,
		Details: map[string]string{"kind": string(p.Payload.Kind())},
	})
	return p.View(user.Key()), f.finishLocked(ctx, nil)
}

// DeletePost removes a live post. Deleting a missing post is not an error;
// the bool reports whether anything was removed.
func (f *Facade) DeletePost(ctx context.Context, user model.UserContext, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	removed := f.content.DeletePost(id)
	if removed {
		f.pending.content = true
		f.pending.emit(model.Event{Kind: model.EventPostDeleted, At: now, UserID: user.Key(), PostID: id})
	}
	return removed, f.finishLocked(ctx, nil)
}

// React toggles the caller's like or dislike on a post.
func (f *Facade) React(ctx context.Context, user model.UserContext, id string, kind model.Reaction) (model.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	p, set, err := f.content.React(user, id, kind)
	if err != nil {
		return model.PostView{}, f.finishLocked(ctx, err)
	}
	f.pending.content = true
	if set {
		f.pending.emit(model.Event{
			Kind:    model.EventPostReacted,
			At:      now,
			UserID:  user.Key(),
			PostID:  id,
			Details: map[string]string{"reaction": string(kind)},
		})
	}
	return p.View(user.Key()), f.finishLocked(ctx, nil)
}

// StartBattle challenges originalID with a new post.
func (f *Facade) StartBattle(ctx context.Context, user model.UserContext, originalID string, challenge model.Draft) (model.BattleView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	b, cp, err := f.content.CreateBattle(user, originalID, challenge)
	if err != nil {
		return model.BattleView{}, f.finishLocked(ctx, err)
	}
	f.pending.content = true
	f.pending.emit(model.Event{
		Kind:     model.EventPostCreated,
		At:       now,
		UserID:   user.Key(),
		PostID:   cp.ID,
		BattleID: b.ID,
		Details:  map[string]string{"kind": string(cp.Payload.Kind())},
	})
	f.pending.emit(model.Event{
		Kind:     model.EventBattleStarted,
		At:       now,
		UserID:   user.Key(),
		PostID:   originalID,
		BattleID: b.ID,
		Details:  map[string]string{"challenge_post_id": cp.ID},
	})
	return b.View(user.Key()), f.finishLocked(ctx, nil)
}

// Vote adds one vote to a side of an active battle.
func (f *Facade) Vote(ctx context.Context, user model.UserContext, battleID string, side model.Side) (model.BattleView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	b, err := f.content.Vote(user, battleID, side)
	if err != nil {
		return model.BattleView{}, f.finishLocked(ctx, err)
	}
	f.pending.content = true
	f.pending.emit(model.Event{
		Kind:     model.EventBattleVoted,
		At:       now,
		UserID:   user.Key(),
		BattleID: battleID,
		Details: map[string]string{
			"side":            string(side),
			"original_votes":  strconv.Itoa(b.OriginalVotes),
			"challenge_votes": strconv.Itoa(b.ChallengeVotes),
		},
	})
	return b.View(user.Key()), f.finishLocked(ctx, nil)
}

// SaveToRewind preserves a live post in the caller's rewind list.
func (f *Facade) SaveToRewind(ctx context.Context, user model.UserContext, postID string) (model.SavedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	p, ok := f.content.Post(postID)
	if !ok {
		return model.SavedPost{}, f.finishLocked(ctx, model.NewNotFound("post", postID))
	}
	saved, err := f.ledger.Save(user, p)
	if err != nil {
		return model.SavedPost{}, f.finishLocked(ctx, err)
	}
	f.pending.rewind = true
	f.pending.emit(model.Event{
		Kind:    model.EventRewindSaved,
		At:      now,
		UserID:  user.Key(),
		PostID:  postID,
		SavedID: saved.ID,
		Details: map[string]string{
			"month":   saved.MonthKey,
			"premium": strconv.FormatBool(saved.IsPremiumSave),
		},
	})
	return saved, f.finishLocked(ctx, nil)
}

// PurchaseEntitlement records a completed payment for the caller.
func (f *Facade) PurchaseEntitlement(ctx context.Context, user model.UserContext) (rewind.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	receipt := f.ledger.PurchaseEntitlement(user)
	f.pending.rewind = true
	f.pending.emit(model.Event{
		Kind:   model.EventEntitlementGranted,
		At:     now,
		UserID: receipt.UserID,
		Details: map[string]string{
			"granted": strconv.Itoa(receipt.Granted),
			"credits": strconv.Itoa(receipt.Credits),
		},
	})
	return receipt, f.finishLocked(ctx, nil)
}

// DeleteSavedPost removes one of the caller's rewind records.
func (f *Facade) DeleteSavedPost(ctx context.Context, user model.UserContext, savedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)

	removed := f.ledger.Delete(user, savedID)
	if removed {
		f.pending.rewind = true
		f.pending.emit(model.Event{Kind: model.EventRewindDeleted, At: now, UserID: user.Key(), SavedID: savedID})
	}
	return removed, f.finishLocked(ctx, nil)
}
