package content

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/testutil"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

var (
	alice = model.UserContext{UserID: "alice", DisplayName: "Ghost A"}
	bob   = model.UserContext{UserID: "bob", DisplayName: "Ghost B"}
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(t0)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(clk, testutil.NewSequentialIDs("id"), opts...), clk
}

func text(s string) model.Draft {
	return model.Draft{Payload: model.TextOf(s)}
}

func TestCreatePost(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.CreatePost(alice, model.Draft{
		Payload: model.TextOf("  hello  "),
		Style:   model.Style{Background: "#000000", Theme: "vent"},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, "alice", p.AuthorID)
	assert.Equal(t, "Ghost A", p.DisplayName)
	assert.Equal(t, "hello", p.Payload.Text.Text)
	assert.Equal(t, "vent", p.Style.Theme)
	assert.Equal(t, t0, p.CreatedAt)
	assert.Equal(t, t0.Add(24*time.Hour), p.ExpiresAt)
	assert.True(t, p.ExpiresAt.After(p.CreatedAt))
	assert.False(t, p.InBattle())
}

func TestCreatePost_InvalidPayload(t *testing.T) {
	s, _ := newTestStore(t)

	cases := map[string]model.Payload{
		"empty":        {},
		"blank text":   model.TextOf("   "),
		"two kinds":    {Text: &model.TextPayload{Text: "x"}, Image: &model.ImagePayload{URI: "a.png"}},
		"voice no uri": model.VoiceOf("", 3),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreatePost(alice, model.Draft{Payload: payload})
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidContent)
		})
	}
	assert.Empty(t, s.Posts())
}

func TestCreatePost_CustomTTL(t *testing.T) {
	s, _ := newTestStore(t, WithPostTTL(time.Hour))
	p, err := s.CreatePost(alice, text("short"))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), p.ExpiresAt)
}

func TestDeletePost_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreatePost(alice, text("bye"))
	require.NoError(t, err)

	assert.True(t, s.DeletePost(p.ID))
	assert.False(t, s.DeletePost(p.ID))
	assert.False(t, s.DeletePost("never-existed"))

	_, ok := s.Post(p.ID)
	assert.False(t, ok)
}

func TestReact_Toggle(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreatePost(alice, text("react to me"))
	require.NoError(t, err)

	got, set, err := s.React(bob, p.ID, model.ReactionLike)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 1, got.LikeCount)
	assert.Equal(t, 0, got.DislikeCount)
	assert.True(t, got.View("bob").Liked)

	// Like again: un-like.
	got, set, err = s.React(bob, p.ID, model.ReactionLike)
	require.NoError(t, err)
	assert.False(t, set)
	assert.Equal(t, 0, got.LikeCount)
	assert.False(t, got.View("bob").Liked)

	// Like then dislike: swap.
	_, _, err = s.React(bob, p.ID, model.ReactionLike)
	require.NoError(t, err)
	got, set, err = s.React(bob, p.ID, model.ReactionDislike)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 0, got.LikeCount)
	assert.Equal(t, 1, got.DislikeCount)
	v := got.View("bob")
	assert.False(t, v.Liked)
	assert.True(t, v.Disliked)
}

func TestReact_PerUser(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreatePost(alice, text("popular"))
	require.NoError(t, err)

	_, _, err = s.React(alice, p.ID, model.ReactionLike)
	require.NoError(t, err)
	got, _, err := s.React(bob, p.ID, model.ReactionLike)
	require.NoError(t, err)

	assert.Equal(t, 2, got.LikeCount)
	assert.True(t, got.View("alice").Liked)
	assert.False(t, got.View("carol").Liked)
}

func TestReact_Errors(t *testing.T) {
	s, _ := newTestStore(t)

	_, _, err := s.React(bob, "missing", model.ReactionLike)
	assert.ErrorIs(t, err, model.ErrNotFound)

	p, err := s.CreatePost(alice, text("x"))
	require.NoError(t, err)
	_, _, err = s.React(bob, p.ID, model.Reaction("love"))
	assert.ErrorIs(t, err, model.ErrInvalidContent)
}

func TestCreateBattle(t *testing.T) {
	s, clk := newTestStore(t)
	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	b, challenge, err := s.CreateBattle(bob, orig.ID, text("challenger"))
	require.NoError(t, err)

	assert.Equal(t, orig.ID, b.OriginalPostID)
	assert.Equal(t, challenge.ID, b.ChallengePostID)
	assert.NotEqual(t, b.OriginalPostID, b.ChallengePostID)
	assert.True(t, b.IsActive)
	assert.Equal(t, t0.Add(time.Hour), b.CreatedAt)
	assert.Equal(t, t0.Add(25*time.Hour), b.ExpiresAt)
	assert.Empty(t, b.WinnerID)

	assert.Equal(t, b.ID, challenge.BattleID)
	assert.Equal(t, t0.Add(25*time.Hour), challenge.ExpiresAt)

	stored, ok := s.Post(orig.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID, stored.BattleID)
	assert.True(t, stored.View("").InBattle)
}

func TestCreateBattle_Errors(t *testing.T) {
	s, _ := newTestStore(t)

	_, _, err := s.CreateBattle(bob, "missing", text("x"))
	assert.ErrorIs(t, err, model.ErrNotFound)

	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)

	_, _, err = s.CreateBattle(bob, orig.ID, model.Draft{})
	assert.ErrorIs(t, err, model.ErrInvalidContent)
	stored, _ := s.Post(orig.ID)
	assert.False(t, stored.InBattle(), "failed battle must not link the original")

	b, _, err := s.CreateBattle(bob, orig.ID, text("first"))
	require.NoError(t, err)

	before := len(s.Posts())
	_, _, err = s.CreateBattle(bob, orig.ID, text("second"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrAlreadyInBattle)
	assert.Len(t, s.Posts(), before)
	assert.Len(t, s.Battles(), 1)
	assert.Equal(t, b.ID, s.Battles()[0].ID)
}

func TestVote(t *testing.T) {
	s, _ := newTestStore(t)
	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)
	b, _, err := s.CreateBattle(bob, orig.ID, text("challenger"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.Vote(model.UserContext{UserID: "voter"}, b.ID, model.SideOriginal)
		require.NoError(t, err)
	}
	got, err := s.Vote(bob, b.ID, model.SideChallenge)
	require.NoError(t, err)

	assert.Equal(t, 3, got.OriginalVotes)
	assert.Equal(t, 1, got.ChallengeVotes)
	assert.Equal(t, model.SideChallenge, got.View("bob").VotedSide)
}

func TestVote_Closed(t *testing.T) {
	s, clk := newTestStore(t)
	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)
	b, _, err := s.CreateBattle(bob, orig.ID, text("challenger"))
	require.NoError(t, err)

	// Votes are accepted up to and including expiresAt.
	clk.Set(b.ExpiresAt)
	_, err = s.Vote(bob, b.ID, model.SideOriginal)
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = s.Vote(bob, b.ID, model.SideOriginal)
	assert.ErrorIs(t, err, model.ErrBattleClosed)

	got, ok := s.Battle(b.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.OriginalVotes)
}

func TestVote_Errors(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Vote(bob, "missing", model.SideOriginal)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Vote(bob, "missing", model.Side("middle"))
	assert.ErrorIs(t, err, model.ErrInvalidContent)
}

func TestVote_OneVotePerUser(t *testing.T) {
	s, _ := newTestStore(t, WithOneVotePerUser(true))
	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)
	b, _, err := s.CreateBattle(bob, orig.ID, text("challenger"))
	require.NoError(t, err)

	_, err = s.Vote(bob, b.ID, model.SideOriginal)
	require.NoError(t, err)
	_, err = s.Vote(bob, b.ID, model.SideChallenge)
	assert.ErrorIs(t, err, model.ErrAlreadyVoted)

	got, _ := s.Battle(b.ID)
	assert.Equal(t, 1, got.OriginalVotes)
	assert.Equal(t, 0, got.ChallengeVotes)
}

func TestReconcile_ResolvesAndExtends(t *testing.T) {
	s, clk := newTestStore(t)
	orig, err := s.CreatePost(alice, text("original"))
	require.NoError(t, err)
	b, challenge, err := s.CreateBattle(bob, orig.ID, text("challenger"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.Vote(bob, b.ID, model.SideOriginal)
		require.NoError(t, err)
	}
	_, err = s.Vote(alice, b.ID, model.SideChallenge)
	require.NoError(t, err)

	now := clk.Advance(24*time.Hour + time.Minute)
	report := s.Reconcile()
	require.True(t, report.Changed)

	got, ok := s.Battle(b.ID)
	require.True(t, ok)
	assert.Equal(t, orig.ID, got.WinnerID)
	assert.False(t, got.IsActive)

	winner, ok := s.Post(orig.ID)
	require.True(t, ok)
	assert.Equal(t, now.Add(48*time.Hour), winner.ExpiresAt)

	_, ok = s.Post(challenge.ID)
	assert.False(t, ok)

	// Second pass at the same instant is a no-op.
	assert.False(t, s.Reconcile().Changed)
}

func TestSnapshotRestore(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreatePost(alice, text("persist me"))
	require.NoError(t, err)

	snap := s.Snapshot()
	s.DeletePost(p.ID)
	_, ok := s.Post(p.ID)
	require.False(t, ok)

	s.Restore(snap)
	got, ok := s.Post(p.ID)
	require.True(t, ok)
	assert.Equal(t, "persist me", got.Payload.Text.Text)

	// Mutating the snapshot does not leak into the store.
	delete(snap.Posts, p.ID)
	_, ok = s.Post(p.ID)
	assert.True(t, ok)
}

func TestPosts_NewestFirst(t *testing.T) {
	s, clk := newTestStore(t)
	first, err := s.CreatePost(alice, text("first"))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, err := s.CreatePost(alice, text("second"))
	require.NoError(t, err)

	posts := s.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestConcurrentReactions(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreatePost(alice, text("hot"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := model.UserContext{UserID: "u" + string(rune('A'+i%26)) + string(rune('a'+i/26))}
			_, _, err := s.React(u, p.ID, model.ReactionLike)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, _ := s.Post(p.ID)
	assert.Equal(t, 50, got.LikeCount)
}
