package persist

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

var t0 = time.Date(2025, 7, 10, 12, 0, 0, 123456789, time.UTC)

func sampleContent() model.ContentState {
	s := model.NewContentState()
	s.Posts["a"] = model.Post{
		ID:           "a",
		AuthorID:     "u1",
		DisplayName:  "Ghost <1>",
		Payload:      model.TextOf("café & <b>"),
		Style:        model.Style{Background: "#112233", Theme: "vent"},
		CreatedAt:    t0,
		ExpiresAt:    t0.Add(24 * time.Hour),
		LikeCount:    1,
		Reactions:    map[string]model.Reaction{"u2": model.ReactionLike},
		BattleID:     "b",
		DislikeCount: 0,
	}
	s.Posts["c"] = model.Post{
		ID:        "c",
		AuthorID:  "u2",
		Payload:   model.MusicOf("track-9", 30, "hum"),
		CreatedAt: t0,
		ExpiresAt: t0.Add(24 * time.Hour),
		BattleID:  "b",
	}
	s.Posts["v"] = model.Post{
		ID:        "v",
		Payload:   model.VoiceOf("file:///v.m4a", 12),
		CreatedAt: t0,
		ExpiresAt: t0.Add(time.Hour),
	}
	s.Battles["b"] = model.Battle{
		ID:              "b",
		OriginalPostID:  "a",
		ChallengePostID: "c",
		OriginalVotes:   3,
		ChallengeVotes:  1,
		CreatedAt:       t0,
		ExpiresAt:       t0.Add(24 * time.Hour),
		IsActive:        true,
		Voters:          map[string]model.Side{"u3": model.SideOriginal},
	}
	return s
}

func sampleRewind() rewind.State {
	s := rewind.NewState()
	s.Accounts["u1"] = rewind.Account{
		Entitled:  true,
		Credits:   4,
		LastReset: "2025-07",
		Saves: []model.SavedPost{{
			ID:            "s1",
			UserID:        "u1",
			Post:          model.PostView{ID: "p", Kind: "image", Payload: model.ImageOf("img://1"), CreatedAt: t0, ExpiresAt: t0.Add(time.Hour), Liked: true},
			SavedAt:       t0,
			MonthKey:      "2025-07",
			IsPremiumSave: true,
		}},
	}
	return s
}

func TestContentRoundTrip(t *testing.T) {
	in := sampleContent()
	raw, err := EncodeContent(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>", "HTML must not be escaped")

	out, err := DecodeContent(raw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(in, out))
	assert.True(t, out.Posts["a"].CreatedAt.Equal(t0), "nanoseconds survive")
}

func TestRewindRoundTrip(t *testing.T) {
	in := sampleRewind()
	raw, err := EncodeRewind(in)
	require.NoError(t, err)

	out, err := DecodeRewind(raw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(in, out))
}

func TestDecode_Rejects(t *testing.T) {
	raw, err := EncodeContent(sampleContent())
	require.NoError(t, err)

	t.Run("tampered body", func(t *testing.T) {
		bad := []byte(string(raw))
		idx := indexOf(bad, "track-9")
		require.GreaterOrEqual(t, idx, 0)
		bad[idx] = 'T'
		_, err := DecodeContent(bad)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := DecodeRewind(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `document holds "content"`)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeContent([]byte("{"))
		assert.Error(t, err)
	})

	t.Run("future version", func(t *testing.T) {
		_, err := DecodeContent([]byte(`{"version":99,"kind":"content","digest":"","data":{}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported version 99")
	})
}

func TestDecode_EmptyMaps(t *testing.T) {
	raw, err := EncodeContent(model.ContentState{})
	require.NoError(t, err)
	out, err := DecodeContent(raw)
	require.NoError(t, err)
	assert.NotNil(t, out.Posts)
	assert.NotNil(t, out.Battles)
}

func TestLoadSnapshot_Memory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	snap, found, err := LoadSnapshot(ctx, m)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, snap.Content.Posts)
	assert.NotNil(t, snap.Rewind.Accounts)

	require.NoError(t, SaveContent(ctx, m, sampleContent()))
	require.NoError(t, SaveRewind(ctx, m, sampleRewind()))
	assert.Equal(t, 2, m.Saves())

	snap, found, err = LoadSnapshot(ctx, m)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, cmp.Diff(sampleContent(), snap.Content))
	assert.Empty(t, cmp.Diff(sampleRewind(), snap.Rewind))
}

func TestLoadSnapshot_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Save(ctx, DocContent, []byte("garbage")))

	_, _, err := LoadSnapshot(ctx, m)
	assert.Error(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = Open(ctx, Options{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "redis"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage driver "etcd"`)
}

func indexOf(b []byte, s string) int {
	for i := 0; i+len(s) <= len(b); i++ {
		if string(b[i:i+len(s)]) == s {
			return i
		}
	}
	return -1
}
