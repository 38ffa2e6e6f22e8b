package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiperEve/BlueGhost/internal/testutil"
)

func openTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blueghost.db")
	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenSQLite_CreatesDatabase(t *testing.T) {
	_, path := openTestSQLite(t)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	s, _ := openTestSQLite(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blueghost.db")
	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path, nil)
		require.NoError(t, err, "open #%d", i)
		require.NoError(t, s.Close())
	}
}

func TestSQLite_LoadMissing(t *testing.T) {
	s, _ := openTestSQLite(t)
	_, err := s.Load(context.Background(), DocContent)
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = s.Previous(context.Background(), DocContent)
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestSQLite_SaveLoadHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestSQLite(t)

	require.NoError(t, s.Save(ctx, "doc", []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, "doc", []byte(`{"v":2}`)))

	got, err := s.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	prev, err := s.Previous(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(prev))
}

func TestSQLite_StampsWithClock(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	clk := testutil.NewManualClock(start)
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "blueghost.db"), clk)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "doc", []byte(`{"v":1}`)))
	clk.Advance(time.Hour)
	require.NoError(t, s.Save(ctx, "doc", []byte(`{"v":2}`)))

	updated, err := s.UpdatedAt(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, start.Add(time.Hour).Equal(updated), "updated_at = %s", updated)

	var replaced string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT replaced_at FROM document_history WHERE name = ?`, "doc").Scan(&replaced))
	assert.Equal(t, "2025-07-10T13:00:00Z", replaced)

	_, err = s.UpdatedAt(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestSQLite_SnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blueghost.db")

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, SaveContent(ctx, s, sampleContent()))
	require.NoError(t, SaveRewind(ctx, s, sampleRewind()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()

	snap, found, err := LoadSnapshot(ctx, s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, snap.Content.Posts, 3)
	assert.Equal(t, 4, snap.Rewind.Accounts["u1"].Credits)
}
