package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/gitref"
	"github.com/kilupskalvis/ovc/internal/models"
)

// externalCommit stores a commit in the backend without touching the view,
// like one fetched from a remote.
func externalCommit(t *testing.T, r *Repo, msg string, parents ...models.CommitID) models.CommitID {
	t.Helper()
	if len(parents) == 0 {
		parents = []models.CommitID{models.RootCommitID}
	}
	c, err := r.Backend.WriteCommit(parents, models.NewChangeID(msg), "content-"+msg, msg, "remote")
	require.NoError(t, err)
	return c.ID
}

func importRefs(t *testing.T, r *Repo, refs gitref.RefStore, opts ImportOptions) *models.ImportReport {
	t.Helper()
	tx := r.StartTransaction()
	report, err := r.ImportRefs(tx, refs, opts)
	require.NoError(t, err)
	if report.Empty() {
		tx.Discard()
		return report
	}
	_, err = tx.Commit("import git refs")
	require.NoError(t, err)
	return report
}

func exportRefs(t *testing.T, r *Repo, refs gitref.RefStore) (*models.ExportReport, *models.Operation) {
	t.Helper()
	tx := r.StartTransaction()
	report, err := r.ExportRefs(tx, refs)
	require.NoError(t, err)
	if len(report.Results) == 0 {
		tx.Discard()
		return report, nil
	}
	op, err := tx.Commit("export git refs")
	require.NoError(t, err)
	return report, op
}

func TestImport_NewRefBecomesTrackedBookmark(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))

	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.Equal(t, models.BookmarkCreated, report.Changes["main"])

	bm := r.View().Bookmark("main")
	require.NotNil(t, bm)
	assert.Equal(t, c1, bm.Local)
	assert.Equal(t, c1, bm.RemoteTarget(GitRemote))
	assert.True(t, r.View().HasHead(c1))
}

func TestImport_AutoTrackOffRecordsMemoryOnly(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))

	report := importRefs(t, r, refs, ImportOptions{AutoTrack: false})
	assert.Equal(t, models.BookmarkCreated, report.Changes["main"])

	bm := r.View().Bookmark("main")
	require.NotNil(t, bm)
	assert.False(t, bm.HasLocal())
	assert.Equal(t, c1, bm.RemoteTarget(GitRemote))
}

func TestImport_SecondRunIsNoop(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	require.NoError(t, refs.Set("refs/heads/main", externalCommit(t, r, "c1")))

	importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	head := r.Head().ID

	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.True(t, report.Empty())
	assert.Equal(t, head, r.Head().ID)
}

func TestImport_MovedRefFollowsWhenLocalUnmoved(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	c2 := externalCommit(t, r, "c2", c1)
	require.NoError(t, refs.Set("refs/heads/main", c1))
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})

	require.NoError(t, refs.Set("refs/heads/main", c2))
	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.Equal(t, models.BookmarkUpdated, report.Changes["main"])

	bm := r.View().Bookmark("main")
	assert.Equal(t, c2, bm.Local)
	assert.Equal(t, c2, bm.RemoteTarget(GitRemote))
	assert.False(t, bm.IsConflicted())
}

func TestImport_BothSidesMovedMarksConflict(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})

	// Local moves independently.
	local := externalCommit(t, r, "local", c1)
	tx := r.StartTransaction()
	tx.View().Bookmark("main").Local = local
	tx.View().AddHead(local)
	_, err := tx.Commit("move main locally")
	require.NoError(t, err)

	// Remote also moved since last sync.
	remote := externalCommit(t, r, "remote", c1)
	require.NoError(t, refs.Set("refs/heads/main", remote))

	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.Equal(t, models.BookmarkConflicted, report.Changes["main"])

	bm := r.View().Bookmark("main")
	require.True(t, bm.IsConflicted())
	assert.ElementsMatch(t, []models.CommitID{local, remote}, bm.Conflict)
	assert.Equal(t, "main??", bm.DisplayName("main"))
	// Divergence is sticky: importing again without changes stays put.
	again := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.True(t, again.Empty())
	assert.True(t, r.View().Bookmark("main").IsConflicted())
}

func TestImport_DeletedRefDeletesUnmovedBookmark(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})

	require.NoError(t, refs.Delete("refs/heads/main"))
	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.Equal(t, models.BookmarkDeleted, report.Changes["main"])
	assert.Nil(t, r.View().Bookmark("main"))
}

func TestImport_DeletedRefKeepsMovedBookmark(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})

	local := externalCommit(t, r, "local", c1)
	tx := r.StartTransaction()
	tx.View().Bookmark("main").Local = local
	tx.View().AddHead(local)
	_, err := tx.Commit("move main locally")
	require.NoError(t, err)

	require.NoError(t, refs.Delete("refs/heads/main"))
	report := importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	assert.Equal(t, models.BookmarkUpdated, report.Changes["main"])

	bm := r.View().Bookmark("main")
	require.NotNil(t, bm)
	assert.Equal(t, local, bm.Local)
	assert.Equal(t, models.CommitID(""), bm.RemoteTarget(GitRemote))
}

func TestImport_UnknownCommitFails(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	ghost := models.GenerateCommitID(models.NewChangeID("ghost"), nil, "", "", "")
	require.NoError(t, refs.Set("refs/heads/main", ghost))

	tx := r.StartTransaction()
	_, err := r.ImportRefs(tx, refs, ImportOptions{AutoTrack: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refs/heads/main")
	tx.Discard()
}

func TestImport_UndoRevertsEverything(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	require.NoError(t, refs.Set("refs/heads/main", externalCommit(t, r, "c1")))

	before := r.View().Clone()
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})
	require.NotNil(t, r.View().Bookmark("main"))

	_, err := r.Undo(r.Head().ID)
	require.NoError(t, err)
	assert.True(t, r.View().Equal(before))
	assert.Nil(t, r.View().Bookmark("main"))
}

func TestExport_WritesRefAndRecordsTracking(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	tx := r.StartTransaction()
	tx.View().SetBookmark("main", models.NewBookmarkTarget(c1))
	tx.View().AddHead(c1)
	_, err := tx.Commit("create bookmark main")
	require.NoError(t, err)

	report, _ := exportRefs(t, r, refs)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Failed())

	heads, err := refs.List(gitref.HeadsNamespace)
	require.NoError(t, err)
	assert.Equal(t, c1, heads["refs/heads/main"])
	assert.Equal(t, c1, r.View().Bookmark("main").RemoteTarget(GitRemote))

	// In sync now; a second export has nothing to do.
	report, _ = exportRefs(t, r, refs)
	assert.Empty(t, report.Results)
}

func TestExport_PropagatesLocalDeletion(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")
	require.NoError(t, refs.Set("refs/heads/main", c1))
	importRefs(t, r, refs, ImportOptions{AutoTrack: true})

	tx := r.StartTransaction()
	bm := tx.View().Bookmark("main").Clone()
	bm.Local = ""
	tx.View().SetBookmark("main", bm)
	_, err := tx.Commit("delete bookmark main")
	require.NoError(t, err)

	report, _ := exportRefs(t, r, refs)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Failed())

	heads, err := refs.List(gitref.HeadsNamespace)
	require.NoError(t, err)
	assert.NotContains(t, heads, "refs/heads/main")
	// Local side and memory both gone, the bookmark entry disappears.
	assert.Nil(t, r.View().Bookmark("main"))
}

func TestExport_ConflictedBookmarkFails(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	x := externalCommit(t, r, "x")
	y := externalCommit(t, r, "y")

	tx := r.StartTransaction()
	bt := &models.BookmarkTarget{}
	bt.SetConflict([]models.CommitID{x, y})
	tx.View().SetBookmark("main", bt)
	tx.View().AddHead(x)
	tx.View().AddHead(y)
	_, err := tx.Commit("conflicted main")
	require.NoError(t, err)

	report, _ := exportRefs(t, r, refs)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "refs/heads/main", failures[0].Ref)
	assert.Contains(t, failures[0].Reason, "conflicted")

	heads, err := refs.List(gitref.HeadsNamespace)
	require.NoError(t, err)
	assert.Empty(t, heads)
}

func TestExport_NameConflictCollectedNotFatal(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")

	tx := r.StartTransaction()
	tx.View().SetBookmark("main", models.NewBookmarkTarget(c1))
	tx.View().SetBookmark("main/sub", models.NewBookmarkTarget(c1))
	tx.View().AddHead(c1)
	_, err := tx.Commit("create bookmarks")
	require.NoError(t, err)

	report, _ := exportRefs(t, r, refs)
	require.Len(t, report.Results, 2)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "refs/heads/main/sub", failures[0].Ref)
	assert.Contains(t, failures[0].Reason, "conflicts with existing ref")

	// The sibling was still written, and only it is tracked.
	heads, err := refs.List(gitref.HeadsNamespace)
	require.NoError(t, err)
	assert.Equal(t, c1, heads["refs/heads/main"])
	assert.Equal(t, c1, r.View().Bookmark("main").RemoteTarget(GitRemote))
	assert.Equal(t, models.CommitID(""), r.View().Bookmark("main/sub").RemoteTarget(GitRemote))
}

func TestExport_UndoRevertsTrackingButNotExternalRefs(t *testing.T) {
	r := newTestRepo(t)
	refs := gitref.NewMemStore()
	c1 := externalCommit(t, r, "c1")

	tx := r.StartTransaction()
	tx.View().SetBookmark("main", models.NewBookmarkTarget(c1))
	tx.View().AddHead(c1)
	_, err := tx.Commit("create bookmark main")
	require.NoError(t, err)

	_, op := exportRefs(t, r, refs)
	require.NotNil(t, op)
	require.Equal(t, c1, r.View().Bookmark("main").RemoteTarget(GitRemote))

	_, err = r.Undo(op.ID)
	require.NoError(t, err)

	// The in-repo tracking memory rolled back with the operation, but the
	// external store keeps what was written. The external side is unowned
	// shared state; undo never reaches into it.
	assert.Equal(t, models.CommitID(""), r.View().Bookmark("main").RemoteTarget(GitRemote))
	heads, err := refs.List(gitref.HeadsNamespace)
	require.NoError(t, err)
	assert.Equal(t, c1, heads["refs/heads/main"])
}

func TestBookmarkTracking_States(t *testing.T) {
	r := newTestRepo(t)
	c1 := externalCommit(t, r, "c1")
	c2 := externalCommit(t, r, "c2", c1)
	c3 := externalCommit(t, r, "c3", c1)

	inSync := models.NewBookmarkTarget(c1)
	inSync.SetRemoteTarget(GitRemote, c1)
	st, err := r.BookmarkTracking(inSync)
	require.NoError(t, err)
	assert.Equal(t, TrackingInSync, st.State)

	ahead := models.NewBookmarkTarget(c2)
	ahead.SetRemoteTarget(GitRemote, c1)
	st, err = r.BookmarkTracking(ahead)
	require.NoError(t, err)
	assert.Equal(t, TrackingAhead, st.State)
	assert.Equal(t, 1, st.Ahead)

	behind := models.NewBookmarkTarget(c1)
	behind.SetRemoteTarget(GitRemote, c2)
	st, err = r.BookmarkTracking(behind)
	require.NoError(t, err)
	assert.Equal(t, TrackingBehind, st.State)
	assert.Equal(t, 1, st.Behind)

	diverged := models.NewBookmarkTarget(c2)
	diverged.SetRemoteTarget(GitRemote, c3)
	st, err = r.BookmarkTracking(diverged)
	require.NoError(t, err)
	assert.Equal(t, TrackingDiverged, st.State)
	assert.Equal(t, 1, st.Ahead)
	assert.Equal(t, 1, st.Behind)

	untracked := models.NewBookmarkTarget(c1)
	st, err = r.BookmarkTracking(untracked)
	require.NoError(t, err)
	assert.Nil(t, st)
}
