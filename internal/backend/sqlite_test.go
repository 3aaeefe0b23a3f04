package backend

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/models"
)

func newTestBackend(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "backend.db")
	b, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLite_RootExists(t *testing.T) {
	b := newTestBackend(t)

	root, err := b.ReadCommit(models.RootCommitID)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Empty(t, root.Parents)
}

func TestSQLite_WriteReadRoundtrip(t *testing.T) {
	b := newTestBackend(t)

	commit, err := b.WriteCommit([]models.CommitID{models.RootCommitID},
		models.NewChangeID("c1"), "content-1", "first commit", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, commit.ID)

	got, err := b.ReadCommit(commit.ID)
	require.NoError(t, err)
	assert.Equal(t, commit.ID, got.ID)
	assert.Equal(t, commit.ChangeID, got.ChangeID)
	assert.Equal(t, []models.CommitID{models.RootCommitID}, got.Parents)
	assert.Equal(t, "content-1", got.ContentRef)
	assert.Equal(t, "first commit", got.Message)
	assert.Equal(t, "alice", got.Author)
	assert.WithinDuration(t, commit.Timestamp, got.Timestamp, time.Second)
}

func TestSQLite_ReadMissing(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.ReadCommit(models.GenerateCommitID(models.NewChangeID("x"), nil, "", "", ""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_WriteIdempotent(t *testing.T) {
	b := newTestBackend(t)
	change := models.NewChangeID("c1")

	a, err := b.WriteCommit([]models.CommitID{models.RootCommitID}, change, "content", "msg", "alice")
	require.NoError(t, err)
	c, err := b.WriteCommit([]models.CommitID{models.RootCommitID}, change, "content", "msg", "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID)

	ids, err := b.ResolvePrefix(string(a.ID[:12]))
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestSQLite_ResolvePrefix(t *testing.T) {
	b := newTestBackend(t)

	commit, err := b.WriteCommit([]models.CommitID{models.RootCommitID},
		models.NewChangeID("c1"), "content", "msg", "alice")
	require.NoError(t, err)

	ids, err := b.ResolvePrefix(string(commit.ID[:8]))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, commit.ID, ids[0])

	ids, err = b.ResolvePrefix("zzzz")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLite_RootAsMergeParent(t *testing.T) {
	b := newTestBackend(t)

	side, err := b.WriteCommit([]models.CommitID{models.RootCommitID},
		models.NewChangeID("side"), "content", "side", "alice")
	require.NoError(t, err)

	_, err = b.WriteCommit([]models.CommitID{models.RootCommitID, side.ID},
		models.NewChangeID("merge"), "content", "merge", "alice")
	require.Error(t, err)
	assert.True(t, IsCapabilityError(err))
	assert.Contains(t, err.Error(), "root commit as one of the parents")
}
