package model

import (
	"sort"
	"time"
)

// Side identifies one of the two posts in a battle.
type Side string

const (
	SideOriginal  Side = "original"
	SideChallenge Side = "challenge"
)

// ParseSide converts user input into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideOriginal, SideChallenge:
		return Side(s), nil
	}
	return "", NewInvalidContent("side must be original or challenge, got " + s)
}

// Battle is a timed contest between two posts.
type Battle struct {
	ID              string          `json:"id"`
	OriginalPostID  string          `json:"original_post_id"`
	ChallengePostID string          `json:"challenge_post_id"`
	OriginalVotes   int             `json:"original_votes"`
	ChallengeVotes  int             `json:"challenge_votes"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	IsActive        bool            `json:"is_active"`
	WinnerID        string          `json:"winner_id,omitempty"`
	ResolvedAt      time.Time       `json:"resolved_at"`
	Voters          map[string]Side `json:"voters,omitempty"`
}

// Resolved reports whether a winner has been determined.
func (b Battle) Resolved() bool {
	return b.WinnerID != ""
}

// DetermineWinner applies the strict-majority rule: the original wins only
// with strictly more votes; ties go to the challenger.
func (b Battle) DetermineWinner() string {
	if b.OriginalVotes > b.ChallengeVotes {
		return b.OriginalPostID
	}
	return b.ChallengePostID
}

// Percentages returns each side's share of the votes, 0-100.
// Both are 0 when nobody has voted.
func (b Battle) Percentages() (original, challenge float64) {
	total := b.OriginalVotes + b.ChallengeVotes
	if total == 0 {
		return 0, 0
	}
	original = float64(b.OriginalVotes) * 100 / float64(total)
	return original, 100 - original
}

// Clone deep-copies the battle.
func (b Battle) Clone() Battle {
	out := b
	if b.Voters != nil {
		out.Voters = make(map[string]Side, len(b.Voters))
		for k, v := range b.Voters {
			out.Voters[k] = v
		}
	}
	return out
}

// BattleView is the read model of a battle with derived percentages.
type BattleView struct {
	ID               string    `json:"id"`
	OriginalPostID   string    `json:"original_post_id"`
	ChallengePostID  string    `json:"challenge_post_id"`
	OriginalVotes    int       `json:"original_votes"`
	ChallengeVotes   int       `json:"challenge_votes"`
	OriginalPercent  float64   `json:"original_percent"`
	ChallengePercent float64   `json:"challenge_percent"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	IsActive         bool      `json:"is_active"`
	WinnerID         string    `json:"winner_id,omitempty"`
	VotedSide        Side      `json:"voted_side,omitempty"`
}

// View renders the battle for userID.
func (b Battle) View(userID string) BattleView {
	op, cp := b.Percentages()
	return BattleView{
		ID:               b.ID,
		OriginalPostID:   b.OriginalPostID,
		ChallengePostID:  b.ChallengePostID,
		OriginalVotes:    b.OriginalVotes,
		ChallengeVotes:   b.ChallengeVotes,
		OriginalPercent:  op,
		ChallengePercent: cp,
		CreatedAt:        b.CreatedAt,
		ExpiresAt:        b.ExpiresAt,
		IsActive:         b.IsActive,
		WinnerID:         b.WinnerID,
		VotedSide:        b.Voters[userID],
	}
}

// SortBattlesNewestFirst orders battles by CreatedAt descending, ID ascending on ties.
func SortBattlesNewestFirst(battles []Battle) {
	sort.Slice(battles, func(i, j int) bool {
		if !battles[i].CreatedAt.Equal(battles[j].CreatedAt) {
			return battles[i].CreatedAt.After(battles[j].CreatedAt)
		}
		return battles[i].ID < battles[j].ID
	})
}
