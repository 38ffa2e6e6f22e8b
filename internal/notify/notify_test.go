package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/model"
)

func sampleEvent() model.Event {
	return model.Event{
		Seq:      7,
		Kind:     model.EventBattleResolved,
		At:       time.Date(2025, 7, 11, 12, 0, 0, 0, time.UTC),
		BattleID: "b1",
		PostID:   "p1",
		Details:  map[string]string{"winner_id": "p1", "loser_id": "p2"},
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, sink.Notify(context.Background(), sampleEvent()))

	out := buf.String()
	assert.Contains(t, out, "msg=event")
	assert.Contains(t, out, "kind=battle.resolved")
	assert.Contains(t, out, "battle_id=b1")
	assert.Contains(t, out, "seq=7")
	// Details are logged in key order.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("loser_id")), bytes.Index(buf.Bytes(), []byte("winner_id")))
	assert.NotContains(t, out, "user_id")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Notify(ctx, sampleEvent()))
	require.NoError(t, r.Notify(ctx, model.Event{Kind: model.EventPostCreated}))

	assert.Len(t, r.Events(), 2)
	assert.Equal(t, 1, r.Count(model.EventPostCreated))
	assert.Equal(t, 0, r.Count(model.EventPostExpired))

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestMulti_JoinsErrors(t *testing.T) {
	var rec Recorder
	boom := errors.New("boom")
	m := Multi{
		Func(func(context.Context, model.Event) error { return boom }),
		&rec,
		Nop{},
	}

	err := m.Notify(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1, "later sinks still receive the event")
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi(nil).Notify(context.Background(), sampleEvent()))
}
