package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// Render writes the final state of a run as stable text: posts and
// battles in id order, accounts by user id, then the event log.
func Render(name string, res *Result) []byte {
	var b strings.Builder
	ts := func(t time.Time) string { return t.UTC().Format(time.RFC3339) }

	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "now: %s\n", ts(res.Now))

	content := res.Final.Content
	b.WriteString("posts:\n")
	if len(content.Posts) == 0 {
		b.WriteString("  none\n")
	}
	for _, id := range content.PostIDs() {
		p := content.Posts[id]
		fmt.Fprintf(&b, "  %s %s author=%s expires=%s likes=%d dislikes=%d",
			p.ID, p.Payload.Kind(), p.AuthorID, ts(p.ExpiresAt), p.LikeCount, p.DislikeCount)
		if p.BattleID != "" {
			fmt.Fprintf(&b, " battle=%s", p.BattleID)
		}
		b.WriteByte('\n')
	}

	b.WriteString("battles:\n")
	if len(content.Battles) == 0 {
		b.WriteString("  none\n")
	}
	for _, id := range content.BattleIDs() {
		bt := content.Battles[id]
		fmt.Fprintf(&b, "  %s original=%s challenge=%s votes=%d-%d active=%t",
			bt.ID, bt.OriginalPostID, bt.ChallengePostID, bt.OriginalVotes, bt.ChallengeVotes, bt.IsActive)
		if bt.WinnerID != "" {
			fmt.Fprintf(&b, " winner=%s", bt.WinnerID)
		}
		fmt.Fprintf(&b, " expires=%s\n", ts(bt.ExpiresAt))
	}

	accounts := res.Final.Rewind.Accounts
	users := make([]string, 0, len(accounts))
	for u := range accounts {
		users = append(users, u)
	}
	sort.Strings(users)
	b.WriteString("rewind:\n")
	if len(users) == 0 {
		b.WriteString("  none\n")
	}
	for _, u := range users {
		acct := accounts[u]
		fmt.Fprintf(&b, "  %s entitled=%t credits=%d last_reset=%s\n", u, acct.Entitled, acct.Credits, acct.LastReset)
		for _, s := range acct.Saves {
			fmt.Fprintf(&b, "    %s post=%s month=%s premium=%t\n", s.ID, s.Post.ID, s.MonthKey, s.IsPremiumSave)
		}
	}

	b.WriteString("events:\n")
	if len(res.Events) == 0 {
		b.WriteString("  none\n")
	}
	for _, ev := range res.Events {
		writeEvent(&b, ev)
	}
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, ev model.Event) {
	fmt.Fprintf(b, "  %d %s", ev.Seq, ev.Kind)
	if ev.UserID != "" {
		fmt.Fprintf(b, " user=%s", ev.UserID)
	}
	if ev.PostID != "" {
		fmt.Fprintf(b, " post=%s", ev.PostID)
	}
	if ev.BattleID != "" {
		fmt.Fprintf(b, " battle=%s", ev.BattleID)
	}
	if ev.SavedID != "" {
		fmt.Fprintf(b, " saved=%s", ev.SavedID)
	}
	b.WriteByte('\n')
}

// RunWithGolden executes a scenario and compares its rendered final state
// with testdata/golden/{scenario.Name}.golden. Failed expectations or
// assertions fail the test before the comparison.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}
