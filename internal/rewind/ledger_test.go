package rewind

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/testutil"
)

var (
	july = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)
	user = model.UserContext{UserID: "u1", DisplayName: "Ghost"}
)

func newTestLedger(t *testing.T, policy Policy) (*Ledger, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(july)
	l := New(clk, testutil.NewSequentialIDs("save"), policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return l, clk
}

func post(id string) model.Post {
	return model.Post{
		ID:        id,
		AuthorID:  "author",
		Payload:   model.TextOf("ghost " + id),
		CreatedAt: july,
		ExpiresAt: july.Add(24 * time.Hour),
	}
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2025-07", MonthKey(july, nil))

	// 23:30 UTC on the last day of the month is already next month further east.
	edge := time.Date(2025, 7, 31, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "2025-07", MonthKey(edge, time.UTC))
	assert.Equal(t, "2025-08", MonthKey(edge, tokyo))
}

func TestNew_Defaults(t *testing.T) {
	l, _ := newTestLedger(t, Policy{})
	p := l.Policy()
	assert.Equal(t, 3, p.FreeQuota)
	assert.Equal(t, 10, p.PremiumQuota)
	assert.Equal(t, time.UTC, p.Location)
}

func TestSave_FreeQuota(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())

	u := l.Usage(user)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, 3, u.Max)
	assert.Equal(t, "2025-07", u.MonthKey)

	for i, id := range []string{"p1", "p2", "p3"} {
		saved, err := l.Save(user, post(id))
		require.NoError(t, err)
		assert.False(t, saved.IsPremiumSave)
		assert.Equal(t, "2025-07", saved.MonthKey)
		assert.Equal(t, july, saved.SavedAt)
		assert.Equal(t, id, saved.Post.ID)
		assert.Equal(t, i+1, l.Usage(user).Used)
	}
	assert.False(t, l.CanSave(user))
}

func TestSave_DeniedWithoutEntitlement(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := l.Save(user, post(id))
		require.NoError(t, err)
	}
	before := l.Snapshot()

	_, err := l.Save(user, post("p4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrQuotaExceeded)
	assert.Equal(t, before, l.Snapshot(), "denied save must not change state")

	u := l.Usage(user)
	assert.LessOrEqual(t, u.Used, u.Max)
}

func TestSave_PurchaseUnlocksPremium(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := l.Save(user, post(id))
		require.NoError(t, err)
	}
	_, err := l.Save(user, post("p4"))
	require.ErrorIs(t, err, model.ErrQuotaExceeded)

	receipt := l.PurchaseEntitlement(user)
	assert.Equal(t, "u1", receipt.UserID)
	assert.Equal(t, 5, receipt.Granted)
	assert.Equal(t, 5, receipt.Credits)

	saved, err := l.Save(user, post("p4"))
	require.NoError(t, err)
	assert.True(t, saved.IsPremiumSave)

	u := l.Usage(user)
	assert.True(t, u.Entitled)
	assert.Equal(t, 10, u.Max)
	assert.Equal(t, 3, u.Used, "premium saves do not count against the free quota")
	assert.Equal(t, 4, u.Credits)
}

func TestSave_ExternallyEntitled(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	vip := model.UserContext{UserID: "vip", Entitled: true}

	saved, err := l.Save(vip, post("p1"))
	require.NoError(t, err)
	assert.True(t, saved.IsPremiumSave)

	u := l.Usage(vip)
	assert.Equal(t, 10, u.Max)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, 0, u.Credits, "credits never go negative")
}

func TestSave_CreditsRunOutWithoutBlocking(t *testing.T) {
	l, _ := newTestLedger(t, Policy{FreeQuota: 1, BonusCredits: 2})
	l.PurchaseEntitlement(user)

	for i, id := range []string{"p1", "p2", "p3", "p4"} {
		saved, err := l.Save(user, post(id))
		require.NoError(t, err, "save %d", i)
		assert.True(t, saved.IsPremiumSave)
		assert.Equal(t, max(0, 1-i), l.Usage(user).Credits)
	}
}

func TestSave_DuplicateInMonth(t *testing.T) {
	l, clk := newTestLedger(t, DefaultPolicy())
	_, err := l.Save(user, post("p1"))
	require.NoError(t, err)

	_, err = l.Save(user, post("p1"))
	assert.ErrorIs(t, err, model.ErrAlreadySaved)
	assert.Equal(t, 1, l.Usage(user).Used)

	// A new month allows it again.
	clk.Set(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	_, err = l.Save(user, post("p1"))
	assert.NoError(t, err)
}

func TestSave_SnapshotIsIndependent(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	p := post("p1")
	p.Reactions = map[string]model.Reaction{"x": model.ReactionLike}

	_, err := l.Save(user, p)
	require.NoError(t, err)
	p.Payload.Text.Text = "edited"

	got := l.List(user)
	require.Len(t, got, 1)
	assert.Equal(t, "ghost p1", got[0].Post.Payload.Text.Text)
}

func TestSave_SnapshotIsTheSaversView(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	p := post("p1")
	p.BattleID = "b1"
	p.LikeCount, p.DislikeCount = 1, 1
	p.Reactions = map[string]model.Reaction{
		user.Key(): model.ReactionLike,
		"stranger": model.ReactionDislike,
	}

	saved, err := l.Save(user, p)
	require.NoError(t, err)
	assert.True(t, saved.Post.Liked)
	assert.False(t, saved.Post.Disliked)
	assert.True(t, saved.Post.InBattle)
	assert.Equal(t, 1, saved.Post.DislikeCount)

	raw, err := json.Marshal(l.List(user))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stranger")
	assert.NotContains(t, string(raw), "reactions")
}

func TestUsage_MonthRollover(t *testing.T) {
	l, clk := newTestLedger(t, DefaultPolicy())
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := l.Save(user, post(id))
		require.NoError(t, err)
	}
	require.False(t, l.CanSave(user))

	clk.Set(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	u := l.Usage(user)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, "2025-08", u.MonthKey)
	assert.True(t, l.CanSave(user))
}

func TestList_NewestFirst(t *testing.T) {
	l, clk := newTestLedger(t, DefaultPolicy())
	_, err := l.Save(user, post("p1"))
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = l.Save(user, post("p2"))
	require.NoError(t, err)

	got := l.List(user)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].Post.ID)
	assert.Equal(t, "p1", got[1].Post.ID)

	assert.Empty(t, l.List(model.UserContext{UserID: "nobody"}))
}

func TestDelete(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	saved, err := l.Save(user, post("p1"))
	require.NoError(t, err)

	assert.True(t, l.Delete(user, saved.ID))
	assert.False(t, l.Delete(user, saved.ID))
	assert.False(t, l.Delete(model.UserContext{UserID: "other"}, saved.ID))
	assert.Empty(t, l.List(user))
	assert.Equal(t, 0, l.Usage(user).Used)
}

func TestResetMonthly_CounterOnly(t *testing.T) {
	l, clk := newTestLedger(t, DefaultPolicy())
	for _, id := range []string{"p1", "p2"} {
		_, err := l.Save(user, post(id))
		require.NoError(t, err)
	}

	clk.Set(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	res := l.ResetMonthly("")
	assert.Equal(t, "2025-08", res.MonthKey)
	assert.Equal(t, []string{"u1"}, res.Users)
	assert.Equal(t, 0, res.Purged)
	assert.Len(t, l.List(user), 2, "snapshots are preserved")

	again := l.ResetMonthly("")
	assert.Empty(t, again.Users)
}

func TestResetMonthly_NewAccountsStartCurrent(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	_, err := l.Save(user, post("p1"))
	require.NoError(t, err)

	res := l.ResetMonthly("")
	assert.Empty(t, res.Users)
	assert.Equal(t, "2025-07", l.Snapshot().Accounts["u1"].LastReset)
}

func TestResetMonthly_PurgeStaleFreeSaves(t *testing.T) {
	l, clk := newTestLedger(t, Policy{PurgeStaleFreeSaves: true})
	_, err := l.Save(user, post("free"))
	require.NoError(t, err)
	l.PurchaseEntitlement(user)
	_, err = l.Save(user, post("premium"))
	require.NoError(t, err)

	clk.Set(time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC))
	_, err = l.Save(user, post("august"))
	require.NoError(t, err)

	res := l.ResetMonthly("u1")
	assert.Equal(t, 1, res.Purged)

	var ids []string
	for _, s := range l.List(user) {
		ids = append(ids, s.Post.ID)
	}
	assert.ElementsMatch(t, []string{"premium", "august"}, ids)
}

func TestSnapshotRestore(t *testing.T) {
	l, _ := newTestLedger(t, DefaultPolicy())
	_, err := l.Save(user, post("p1"))
	require.NoError(t, err)
	snap := l.Snapshot()

	fresh, _ := newTestLedger(t, DefaultPolicy())
	fresh.Restore(snap)
	assert.Equal(t, 1, fresh.Usage(user).Used)
	assert.Equal(t, snap, fresh.Snapshot())
}
