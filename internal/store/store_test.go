package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(id int64, ts time.Time) *otp.Record {
	return &otp.Record{AccountName: "demo-account-1", ID: id, Timestamp: ts}
}

func TestCursorDefaultsToStartDate(t *testing.T) {
	s, err := Open(t.TempDir(), start)
	require.NoError(t, err)

	cur := s.Cursor("demo-account-1")
	assert.True(t, cur.Timestamp.Equal(start))
	assert.Zero(t, cur.ID)
}

func TestIsNew(t *testing.T) {
	s, err := Open(t.TempDir(), start)
	require.NoError(t, err)

	t.Run("record after start date is new", func(t *testing.T) {
		assert.True(t, s.IsNew("demo-account-1", rec(1, start.Add(time.Hour))))
	})

	t.Run("record at start date is not new", func(t *testing.T) {
		assert.False(t, s.IsNew("demo-account-1", rec(0, start)))
	})

	t.Run("record before start date is not new", func(t *testing.T) {
		assert.False(t, s.IsNew("demo-account-1", rec(5, start.Add(-time.Hour))))
	})
}

func TestCommitMonotonic(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, start)
	require.NoError(t, err)

	first := rec(10, start.Add(24*time.Hour))
	second := rec(11, start.Add(48*time.Hour))

	require.NoError(t, s.Commit("demo-account-1", first))
	require.NoError(t, s.Commit("demo-account-1", second))

	// Re-committing an earlier or identical position is a no-op.
	require.NoError(t, s.Commit("demo-account-1", first))
	require.NoError(t, s.Commit("demo-account-1", second))

	cur := s.Cursor("demo-account-1")
	assert.True(t, cur.Timestamp.Equal(second.Timestamp))
	assert.Equal(t, int64(11), cur.ID)
	assert.False(t, s.IsNew("demo-account-1", second))
}

func TestCommitBelowDefaultStartIsNoop(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, start)
	require.NoError(t, err)

	require.NoError(t, s.Commit("demo-account-1", rec(1, start.Add(-time.Hour))))
	cur := s.Cursor("demo-account-1")
	assert.True(t, cur.Timestamp.Equal(start))
}

func TestCommitSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, start)
	require.NoError(t, err)

	committed := rec(7, start.Add(36*time.Hour))
	require.NoError(t, s.Commit("demo-account-1", committed))

	reopened, err := Open(dir, start)
	require.NoError(t, err)

	cur := reopened.Cursor("demo-account-1")
	assert.True(t, cur.Timestamp.Equal(committed.Timestamp))
	assert.Equal(t, int64(7), cur.ID)
	assert.False(t, reopened.IsNew("demo-account-1", committed))
}

func TestClear(t *testing.T) {
	t.Run("single account back to default", func(t *testing.T) {
		s, err := Open(t.TempDir(), start)
		require.NoError(t, err)
		require.NoError(t, s.Commit("demo-account-1", rec(1, start.Add(time.Hour))))

		require.NoError(t, s.Clear("demo-account-1", time.Time{}))
		assert.True(t, s.Cursor("demo-account-1").Timestamp.Equal(start))
	})

	t.Run("reseed to explicit date", func(t *testing.T) {
		s, err := Open(t.TempDir(), start)
		require.NoError(t, err)
		require.NoError(t, s.Commit("demo-account-1", rec(1, start.Add(48*time.Hour))))

		seed := start.Add(24 * time.Hour)
		require.NoError(t, s.Clear("demo-account-1", seed))
		assert.True(t, s.Cursor("demo-account-1").Timestamp.Equal(seed))
		// Records strictly after the seed are new again.
		assert.True(t, s.IsNew("demo-account-1", rec(1, seed.Add(time.Minute))))
		assert.False(t, s.IsNew("demo-account-1", rec(0, seed)))
	})

	t.Run("all accounts", func(t *testing.T) {
		s, err := Open(t.TempDir(), start)
		require.NoError(t, err)
		require.NoError(t, s.Commit("a", rec(1, start.Add(time.Hour))))
		require.NoError(t, s.Commit("b", rec(2, start.Add(time.Hour))))

		require.NoError(t, s.Clear("", time.Time{}))
		assert.True(t, s.Cursor("a").Timestamp.Equal(start))
		assert.True(t, s.Cursor("b").Timestamp.Equal(start))
	})

	t.Run("all accounts seed covers unseen accounts", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, start)
		require.NoError(t, err)
		require.NoError(t, s.Commit("a", rec(1, start.Add(time.Hour))))

		seed := start.Add(72 * time.Hour)
		require.NoError(t, s.Clear("", seed))

		// Accounts with no stored cursor honor the seed too, including
		// across a restart.
		assert.True(t, s.Cursor("a").Timestamp.Equal(seed))
		assert.True(t, s.Cursor("never-seen").Timestamp.Equal(seed))

		reopened, err := Open(dir, start)
		require.NoError(t, err)
		assert.True(t, reopened.Cursor("never-seen").Timestamp.Equal(seed))
		assert.False(t, reopened.IsNew("never-seen", rec(0, seed)))
		assert.True(t, reopened.IsNew("never-seen", rec(1, seed.Add(time.Minute))))
	})

	t.Run("zero seed drops a persisted seed", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, start)
		require.NoError(t, err)
		require.NoError(t, s.Clear("", start.Add(72*time.Hour)))

		require.NoError(t, s.Clear("", time.Time{}))
		assert.True(t, s.Cursor("a").Timestamp.Equal(start))

		reopened, err := Open(dir, start)
		require.NoError(t, err)
		assert.True(t, reopened.Cursor("a").Timestamp.Equal(start))
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		s, err := Open(t.TempDir(), start)
		require.NoError(t, err)
		require.NoError(t, s.Commit("demo-account-1", rec(1, start.Add(time.Hour))))

		seed := start.Add(12 * time.Hour)
		require.NoError(t, s.Clear("demo-account-1", seed))
		first := s.Cursor("demo-account-1")
		require.NoError(t, s.Clear("demo-account-1", seed))
		assert.Equal(t, first, s.Cursor("demo-account-1"))
	})
}

func TestOpenMissingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, start)
	require.NoError(t, err)
	assert.NotNil(t, s)

	// Nothing was written yet.
	_, statErr := os.Stat(filepath.Join(dir, storeFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, storeFile), []byte("{broken"), 0o600))

	_, err := Open(dir, start)
	assert.Error(t, err)
}
