package expiry

import (
	"log/slog"
	"time"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// DefaultWinnerExtension is how long a battle winner lives past resolution,
// and how long a resolved battle stays visible past its own expiry.
const DefaultWinnerExtension = 48 * time.Hour

// Policy configures reconciliation.
type Policy struct {
	WinnerExtension time.Duration
}

// DefaultPolicy returns the reference policy.
func DefaultPolicy() Policy {
	return Policy{WinnerExtension: DefaultWinnerExtension}
}

func (p Policy) extension() time.Duration {
	if p.WinnerExtension <= 0 {
		return DefaultWinnerExtension
	}
	return p.WinnerExtension
}

// Resolution records one battle resolved during a pass.
type Resolution struct {
	BattleID       string    `json:"battle_id"`
	WinnerID       string    `json:"winner_id"`
	LoserID        string    `json:"loser_id"`
	OriginalVotes  int       `json:"original_votes"`
	ChallengeVotes int       `json:"challenge_votes"`
	WinnerExpires  time.Time `json:"winner_expires"`
	WinnerMissing  bool      `json:"winner_missing,omitempty"`
}

// Report describes what a pass changed. All id lists are in lexical order.
type Report struct {
	Now            time.Time    `json:"now"`
	Changed        bool         `json:"changed"`
	Resolved       []Resolution `json:"resolved,omitempty"`
	ExpiredPosts   []string     `json:"expired_posts,omitempty"`
	DroppedBattles []string     `json:"dropped_battles,omitempty"`
	MissingWinners []string     `json:"missing_winners,omitempty"`
}

// Reconcile applies all time-driven transitions due at now.
// A nil logger uses slog.Default().
func Reconcile(in model.ContentState, now time.Time, policy Policy, logger *slog.Logger) (model.ContentState, Report) {
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{Now: now}

	if !due(in, now, policy) {
		return in, report
	}

	ext := policy.extension()
	out := in.Clone()
	extended := make(map[string]bool)

	// Step 1 + 2: resolve expired battles and extend winners.
	for _, id := range in.BattleIDs() {
		b := out.Battles[id]
		if !b.IsActive || b.ExpiresAt.After(now) {
			continue
		}

		winner := b.DetermineWinner()
		loser := b.OriginalPostID
		if winner == b.OriginalPostID {
			loser = b.ChallengePostID
		}
		b.WinnerID = winner
		b.IsActive = false
		b.ResolvedAt = now
		out.Battles[id] = b

		res := Resolution{
			BattleID:       id,
			WinnerID:       winner,
			LoserID:        loser,
			OriginalVotes:  b.OriginalVotes,
			ChallengeVotes: b.ChallengeVotes,
		}

		post, ok := out.Posts[winner]
		if !ok {
			logger.Warn("battle winner has no post; nothing to extend",
				"battle_id", id,
				"winner_id", winner,
				"code", model.CodeInvalidState,
			)
			res.WinnerMissing = true
			report.MissingWinners = append(report.MissingWinners, winner)
			report.Resolved = append(report.Resolved, res)
			continue
		}

		if until := now.Add(ext); until.After(post.ExpiresAt) {
			post.ExpiresAt = until
			out.Posts[winner] = post
		}
		extended[winner] = true
		res.WinnerExpires = post.ExpiresAt
		report.Resolved = append(report.Resolved, res)

		logger.Debug("battle resolved",
			"battle_id", id,
			"winner_id", winner,
			"original_votes", b.OriginalVotes,
			"challenge_votes", b.ChallengeVotes,
			"winner_expires", post.ExpiresAt,
		)
	}

	// Step 3: hard-delete expired posts.
	for _, id := range out.PostIDs() {
		if extended[id] {
			continue
		}
		if !out.Posts[id].ExpiresAt.After(now) {
			delete(out.Posts, id)
			report.ExpiredPosts = append(report.ExpiredPosts, id)
		}
	}

	// Step 4: drop battles past their visibility window.
	for _, id := range out.BattleIDs() {
		if !retained(out.Battles[id], now, ext) {
			delete(out.Battles, id)
			report.DroppedBattles = append(report.DroppedBattles, id)
		}
	}

	report.Changed = len(report.Resolved) > 0 ||
		len(report.ExpiredPosts) > 0 ||
		len(report.DroppedBattles) > 0

	if !report.Changed {
		return in, report
	}
	return out, report
}

// due reports whether any transition applies at now, without copying state.
func due(s model.ContentState, now time.Time, policy Policy) bool {
	ext := policy.extension()
	for _, b := range s.Battles {
		if b.IsActive && !b.ExpiresAt.After(now) {
			return true
		}
		if !retained(b, now, ext) {
			return true
		}
	}
	for _, p := range s.Posts {
		if !p.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

func retained(b model.Battle, now time.Time, ext time.Duration) bool {
	if b.IsActive {
		return true
	}
	return b.WinnerID != "" && b.ExpiresAt.Add(ext).After(now)
}

// NextDeadline returns the earliest future instant at which Reconcile would
// change s, and false if nothing is scheduled. Schedulers use it to decide
// whether a tick is worth running.
func NextDeadline(s model.ContentState, now time.Time, policy Policy) (time.Time, bool) {
	ext := policy.extension()
	var next time.Time
	found := false
	consider := func(t time.Time) {
		if !t.After(now) {
			t = now
		}
		if !found || t.Before(next) {
			next = t
			found = true
		}
	}
	for _, p := range s.Posts {
		consider(p.ExpiresAt)
	}
	for _, b := range s.Battles {
		if b.IsActive {
			consider(b.ExpiresAt)
			continue
		}
		consider(b.ExpiresAt.Add(ext))
	}
	return next, found
}
