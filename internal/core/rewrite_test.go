package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/models"
)

func abandonCommits(t *testing.T, r *Repo, opts AbandonOptions, targets ...models.CommitID) *models.AbandonReport {
	t.Helper()
	tx := r.StartTransaction()
	report, err := r.Abandon(tx, targets, opts)
	require.NoError(t, err)
	if report.Empty() {
		tx.Discard()
		return report
	}
	_, err = tx.Commit("abandon")
	require.NoError(t, err)
	return report
}

// findRewrite returns the visible commit carrying the given change identity.
func findRewrite(t *testing.T, r *Repo, change models.ChangeID) *models.Commit {
	t.Helper()
	visible, err := r.visibleCommits(r.View())
	require.NoError(t, err)
	var found *models.Commit
	for id := range visible {
		c, err := r.Backend.ReadCommit(id)
		require.NoError(t, err)
		if c.ChangeID == change {
			require.Nil(t, found, "change must be visible exactly once")
			found = c
		}
	}
	require.NotNil(t, found)
	return found
}

func TestAbandon_RebasesDescendantOntoRoot(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	y := writeCommit(t, r, tx, "y", x)
	_, err := tx.Commit("setup")
	require.NoError(t, err)

	oldY, err := r.Backend.ReadCommit(y)
	require.NoError(t, err)

	report := abandonCommits(t, r, AbandonOptions{}, x)
	require.Len(t, report.Abandoned, 1)
	assert.Equal(t, x, report.Abandoned[0].ID)
	assert.Equal(t, "x", report.Abandoned[0].Message)
	assert.Equal(t, 1, report.RebasedDescendants)

	visible, err := r.visibleCommits(r.View())
	require.NoError(t, err)
	assert.False(t, visible[x])
	assert.False(t, visible[y])

	newY := findRewrite(t, r, oldY.ChangeID)
	assert.NotEqual(t, y, newY.ID)
	assert.Equal(t, []models.CommitID{models.RootCommitID}, newY.Parents)
	assert.Equal(t, oldY.ContentRef, newY.ContentRef)
	assert.Equal(t, oldY.Message, newY.Message)
	assert.True(t, r.View().HasHead(newY.ID))
}

// The five-commit shape: b on a, e merges a and d, d on c, with a bookmark
// per commit.
func setupMergeGraph(t *testing.T, r *Repo) (a, b, c, d, e models.CommitID) {
	t.Helper()
	tx := r.StartTransaction()
	a = writeCommit(t, r, tx, "a")
	b = writeCommit(t, r, tx, "b", a)
	c = writeCommit(t, r, tx, "c")
	d = writeCommit(t, r, tx, "d", c)
	e = writeCommit(t, r, tx, "e", a, d)
	view := tx.View()
	for name, id := range map[string]models.CommitID{"a": a, "b": b, "c": c, "d": d, "e": e} {
		view.SetBookmark(name, models.NewBookmarkTarget(id))
	}
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	return a, b, c, d, e
}

func TestAbandon_MergeChildKeepsBothLines(t *testing.T) {
	r := newTestRepo(t)
	a, _, c, d, e := setupMergeGraph(t, r)
	eChange, err := r.Backend.ReadCommit(e)
	require.NoError(t, err)

	report := abandonCommits(t, r, AbandonOptions{RetainBookmarks: true}, d)
	require.Len(t, report.Abandoned, 1)
	assert.Equal(t, d, report.Abandoned[0].ID)
	assert.Equal(t, 1, report.RebasedDescendants)
	assert.Empty(t, report.DeletedBookmarks)

	// e is relinked to [a, c]: d's slot is taken by its parent, and a must
	// not be duplicated.
	newE := findRewrite(t, r, eChange.ChangeID)
	assert.Equal(t, []models.CommitID{a, c}, newE.Parents)

	// The bookmark that pointed at d lands on c; e's bookmark follows the
	// rewrite.
	assert.Equal(t, c, r.View().Bookmark("d").Local)
	assert.Equal(t, newE.ID, r.View().Bookmark("e").Local)
	assert.Equal(t, a, r.View().Bookmark("a").Local)
	assert.Equal(t, c, r.View().Bookmark("c").Local)
}

func TestAbandon_DeletesBookmarksWithoutRetain(t *testing.T) {
	r := newTestRepo(t)
	a, _, c, d, e := setupMergeGraph(t, r)

	report := abandonCommits(t, r, AbandonOptions{}, d, e)
	require.Len(t, report.Abandoned, 2)
	assert.Equal(t, []string{"d", "e"}, report.DeletedBookmarks)
	assert.Zero(t, report.RebasedDescendants)

	assert.Nil(t, r.View().Bookmark("d"))
	assert.Nil(t, r.View().Bookmark("e"))
	assert.Equal(t, c, r.View().Bookmark("c").Local)

	// e's replacement parents surface as heads in its stead.
	assert.True(t, r.View().HasHead(a) || r.View().HasHead(c))
	visible, err := r.visibleCommits(r.View())
	require.NoError(t, err)
	assert.True(t, visible[a])
	assert.True(t, visible[c])
	assert.False(t, visible[d])
	assert.False(t, visible[e])
}

func TestAbandon_ReportsDescendantsFirst(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	p := writeCommit(t, r, tx, "p")
	q := writeCommit(t, r, tx, "q", p)
	s := writeCommit(t, r, tx, "s", q)
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	sChange, err := r.Backend.ReadCommit(s)
	require.NoError(t, err)

	report := abandonCommits(t, r, AbandonOptions{}, p, q)
	require.Len(t, report.Abandoned, 2)
	assert.Equal(t, q, report.Abandoned[0].ID)
	assert.Equal(t, p, report.Abandoned[1].ID)

	// Substitution is transitive: s lands directly on the root.
	newS := findRewrite(t, r, sChange.ChangeID)
	assert.Equal(t, []models.CommitID{models.RootCommitID}, newS.Parents)
}

func TestAbandon_ChainLinkIntoMergeDedupsParent(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	y := writeCommit(t, r, tx, "y", x)
	m := writeCommit(t, r, tx, "m", y, x)
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	mChange, err := r.Backend.ReadCommit(m)
	require.NoError(t, err)

	report := abandonCommits(t, r, AbandonOptions{}, y)
	assert.Equal(t, 1, report.RebasedDescendants)

	// Replacing y with x must collapse [x, x] to [x], not keep a
	// duplicated entry.
	newM := findRewrite(t, r, mChange.ChangeID)
	assert.Equal(t, []models.CommitID{x}, newM.Parents)
}

func TestAbandon_RootAsMergeParentFailsBeforeMutation(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	z := writeCommit(t, r, tx, "z")
	m := writeCommit(t, r, tx, "m", x, z)
	_, err := tx.Commit("setup")
	require.NoError(t, err)

	before := r.View().ContentHash()
	headBefore := r.Head().ID

	tx = r.StartTransaction()
	_, err = r.Abandon(tx, []models.CommitID{x}, AbandonOptions{})
	require.Error(t, err)
	assert.True(t, backend.IsCapabilityError(err))
	assert.Contains(t, err.Error(), "root commit as one of the parents")
	tx.Discard()

	// Nothing moved: same view, same operation head, m still visible.
	assert.Equal(t, before, r.View().ContentHash())
	assert.Equal(t, headBefore, r.Head().ID)
	visible, err := r.visibleCommits(r.View())
	require.NoError(t, err)
	assert.True(t, visible[m])
	assert.True(t, visible[x])
}

func TestAbandon_RootCommitRejected(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	defer tx.Discard()

	_, err := r.Abandon(tx, []models.CommitID{models.RootCommitID}, AbandonOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root commit")
}

func TestAbandon_RepeatIsNoop(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	_, err := tx.Commit("setup")
	require.NoError(t, err)

	first := abandonCommits(t, r, AbandonOptions{}, x)
	require.Len(t, first.Abandoned, 1)
	viewAfter := r.View().ContentHash()
	headAfter := r.Head().ID

	second := abandonCommits(t, r, AbandonOptions{}, x)
	assert.True(t, second.Empty())
	assert.Equal(t, viewAfter, r.View().ContentHash())
	assert.Equal(t, headAfter, r.Head().ID)
}

func TestAbandon_OverlappingTargetsReportedOnce(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	d := writeCommit(t, r, tx, "d")
	e := writeCommit(t, r, tx, "e", d)
	_, err := tx.Commit("setup")
	require.NoError(t, err)

	// e is already inside d's descendant closure and is also named
	// directly; it must be reported exactly once.
	report := abandonCommits(t, r, AbandonOptions{}, d, e, e)
	require.Len(t, report.Abandoned, 2)
	assert.NotEqual(t, report.Abandoned[0].ID, report.Abandoned[1].ID)
	assert.Zero(t, report.RebasedDescendants)
}

func TestAbandon_WorkingCopyMovesToParent(t *testing.T) {
	r := newTestRepo(t)
	wc := r.View().Workspaces[DefaultWorkspace]

	report := abandonCommits(t, r, AbandonOptions{}, wc)
	require.Len(t, report.Abandoned, 1)
	assert.Equal(t, models.RootCommitID, report.NewWorkingCopy[DefaultWorkspace])
	assert.Equal(t, models.RootCommitID, r.View().Workspaces[DefaultWorkspace])
}

func TestAbandon_WorkingCopyOnMergeGetsSynthesizedCommit(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	k := writeCommit(t, r, tx, "k")
	p1 := writeCommit(t, r, tx, "p1", k)
	p2 := writeCommit(t, r, tx, "p2", k)
	m := writeCommit(t, r, tx, "m", p1, p2)
	tx.View().Workspaces[DefaultWorkspace] = m
	_, err := tx.Commit("setup")
	require.NoError(t, err)

	report := abandonCommits(t, r, AbandonOptions{}, m)
	require.Len(t, report.Abandoned, 1)

	// A single-valued pointer cannot hold two replacement parents, so a
	// fresh empty merge commit is synthesized for it.
	newWC, ok := report.NewWorkingCopy[DefaultWorkspace]
	require.True(t, ok)
	assert.NotEqual(t, m, newWC)
	assert.NotEqual(t, p1, newWC)
	assert.NotEqual(t, p2, newWC)

	synth, err := r.Backend.ReadCommit(newWC)
	require.NoError(t, err)
	assert.Equal(t, []models.CommitID{p1, p2}, synth.Parents)
	assert.Empty(t, synth.Message)
	assert.Equal(t, newWC, r.View().Workspaces[DefaultWorkspace])
	assert.True(t, r.View().HasHead(newWC))
}

func TestAbandon_RestoreDescendantsConsultsContentMerge(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	y := writeCommit(t, r, tx, "y", x)
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	yChange, err := r.Backend.ReadCommit(y)
	require.NoError(t, err)

	b := memBackend(t, r)
	require.Zero(t, b.MergeCalls)

	report := abandonCommits(t, r, AbandonOptions{RestoreDescendants: true}, x)
	assert.Equal(t, 1, report.RebasedDescendants)
	assert.Positive(t, b.MergeCalls)

	// The descendant's content was recomputed against the new parent set
	// instead of carried over unchanged.
	newY := findRewrite(t, r, yChange.ChangeID)
	assert.NotEqual(t, yChange.ContentRef, newY.ContentRef)
}

func TestAbandon_DefaultKeepsContentRefUntouched(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	y := writeCommit(t, r, tx, "y", x)
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	yChange, err := r.Backend.ReadCommit(y)
	require.NoError(t, err)

	b := memBackend(t, r)
	abandonCommits(t, r, AbandonOptions{}, x)

	newY := findRewrite(t, r, yChange.ChangeID)
	assert.Equal(t, yChange.ContentRef, newY.ContentRef)
	assert.Zero(t, b.MergeCalls)
}

func TestAbandon_ConflictedBookmarkCandidatesRemapped(t *testing.T) {
	r := newTestRepo(t)
	tx := r.StartTransaction()
	x := writeCommit(t, r, tx, "x")
	y := writeCommit(t, r, tx, "y")
	bt := &models.BookmarkTarget{}
	bt.SetConflict([]models.CommitID{x, y})
	tx.View().SetBookmark("main", bt)
	_, err := tx.Commit("setup")
	require.NoError(t, err)
	require.True(t, r.View().Bookmark("main").IsConflicted())

	// Abandoning one candidate drops it; a single survivor resolves the
	// conflict.
	report := abandonCommits(t, r, AbandonOptions{}, x)
	require.Len(t, report.Abandoned, 1)
	assert.Empty(t, report.DeletedBookmarks)

	bm := r.View().Bookmark("main")
	require.NotNil(t, bm)
	assert.False(t, bm.IsConflicted())
	assert.Equal(t, y, bm.Local)
}
