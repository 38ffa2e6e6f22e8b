package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PiperEve/BlueGhost/internal/expiry"
	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// deleteResult is the outcome of the delete commands.
type deleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// tickResult is the outcome of the tick command.
type tickResult struct {
	Reconcile expiry.Report      `json:"reconcile"`
	Reset     rewind.ResetResult `json:"reset"`
	Next      *time.Time         `json:"next_deadline,omitempty"`
}

const timeLayout = time.RFC3339

func renderText(w io.Writer, data any) error {
	var b strings.Builder
	switch v := data.(type) {
	case model.PostView:
		writePost(&b, v)
	case []model.PostView:
		if len(v) == 0 {
			b.WriteString("no posts\n")
		}
		for _, p := range v {
			writePost(&b, p)
		}
	case model.BattleView:
		writeBattle(&b, v)
	case []model.BattleView:
		if len(v) == 0 {
			b.WriteString("no battles\n")
		}
		for _, bv := range v {
			writeBattle(&b, bv)
		}
	case model.SavedPost:
		writeSaved(&b, v)
	case []model.SavedPost:
		if len(v) == 0 {
			b.WriteString("no saved posts\n")
		}
		for _, s := range v {
			writeSaved(&b, s)
		}
	case rewind.Usage:
		fmt.Fprintf(&b, "%s: %d of %d saves used, %d remaining, %d credits",
			v.MonthKey, v.Used, v.Max, v.Remaining(), v.Credits)
		if v.Entitled {
			b.WriteString(", entitled")
		}
		b.WriteByte('\n')
	case rewind.Receipt:
		fmt.Fprintf(&b, "entitlement granted to %s: +%d credits (%d total)\n", v.UserID, v.Granted, v.Credits)
	case deleteResult:
		if v.Deleted {
			fmt.Fprintf(&b, "deleted %s\n", v.ID)
		} else {
			fmt.Fprintf(&b, "%s not found, nothing deleted\n", v.ID)
		}
	case tickResult:
		writeReport(&b, v.Reconcile)
		if len(v.Reset.Users) > 0 {
			fmt.Fprintf(&b, "monthly reset %s: %d users, %d saves purged\n",
				v.Reset.MonthKey, len(v.Reset.Users), v.Reset.Purged)
		}
		if v.Next != nil {
			fmt.Fprintf(&b, "next deadline %s\n", v.Next.Format(timeLayout))
		}
	default:
		fmt.Fprintln(&b, data)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writePost(b *strings.Builder, p model.PostView) {
	fmt.Fprintf(b, "%s  %-5s  %q  by %s  +%d/-%d  expires %s",
		p.ID, p.Kind, p.Payload.Summary(), p.DisplayName,
		p.LikeCount, p.DislikeCount, p.ExpiresAt.Format(timeLayout))
	if p.InBattle {
		fmt.Fprintf(b, "  battle %s", p.BattleID)
	}
	b.WriteByte('\n')
}

func writeBattle(b *strings.Builder, v model.BattleView) {
	fmt.Fprintf(b, "%s  %s vs %s  %d-%d (%.0f%%/%.0f%%)",
		v.ID, v.OriginalPostID, v.ChallengePostID,
		v.OriginalVotes, v.ChallengeVotes, v.OriginalPercent, v.ChallengePercent)
	if v.IsActive {
		fmt.Fprintf(b, "  ends %s", v.ExpiresAt.Format(timeLayout))
	} else {
		fmt.Fprintf(b, "  winner %s", v.WinnerID)
	}
	if v.VotedSide != "" {
		fmt.Fprintf(b, "  you voted %s", v.VotedSide)
	}
	b.WriteByte('\n')
}

func writeSaved(b *strings.Builder, s model.SavedPost) {
	kind := "free"
	if s.IsPremiumSave {
		kind = "premium"
	}
	fmt.Fprintf(b, "%s  post %s  %q  saved %s  %s %s\n",
		s.ID, s.Post.ID, s.Post.Payload.Summary(), s.SavedAt.Format(timeLayout), s.MonthKey, kind)
}

func writeReport(b *strings.Builder, r expiry.Report) {
	if !r.Changed {
		fmt.Fprintf(b, "nothing due at %s\n", r.Now.Format(timeLayout))
		return
	}
	for _, res := range r.Resolved {
		fmt.Fprintf(b, "battle %s resolved: winner %s (%d-%d)\n",
			res.BattleID, res.WinnerID, res.OriginalVotes, res.ChallengeVotes)
	}
	for _, id := range r.ExpiredPosts {
		fmt.Fprintf(b, "post %s expired\n", id)
	}
	for _, id := range r.DroppedBattles {
		fmt.Fprintf(b, "battle %s dropped\n", id)
	}
}
