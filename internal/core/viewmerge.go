package core

import (
	"github.com/kilupskalvis/ovc/internal/models"
)

// MergeViews three-way merges two views against their common-ancestor view.
// Pure function with explicit per-field rules:
//
//   - heads: set union of both sides' additions, minus either side's
//     removals relative to the base;
//   - bookmarks: per name, the side that changed wins; both changed to
//     different targets marks the bookmark conflicted ("??");
//   - workspace pointers: per workspace, the changed side wins; both
//     changed, ours wins (a working copy must stay single-valued).
//
// Merges always succeed; conflicts are recorded, never raised.
func MergeViews(base, ours, theirs *models.View) *models.View {
	result := models.NewView()

	mergeHeads(result, base, ours, theirs)
	mergeBookmarks(result, base, ours, theirs)
	mergeWorkspaces(result, base, ours, theirs)

	return result
}

func mergeHeads(result, base, ours, theirs *models.View) {
	removed := make(map[models.CommitID]bool)
	for _, h := range base.Heads {
		if !ours.HasHead(h) || !theirs.HasHead(h) {
			removed[h] = true
		}
	}
	for _, h := range ours.Heads {
		if !removed[h] {
			result.AddHead(h)
		}
	}
	for _, h := range theirs.Heads {
		if !removed[h] {
			result.AddHead(h)
		}
	}
}

func mergeBookmarks(result, base, ours, theirs *models.View) {
	names := make(map[string]bool)
	for name := range base.Bookmarks {
		names[name] = true
	}
	for name := range ours.Bookmarks {
		names[name] = true
	}
	for name := range theirs.Bookmarks {
		names[name] = true
	}

	for name := range names {
		b := base.Bookmark(name)
		o := ours.Bookmark(name)
		t := theirs.Bookmark(name)

		switch {
		case models.TargetsEqual(o, t):
			result.SetBookmark(name, cloneTarget(o))
		case models.TargetsEqual(o, b):
			result.SetBookmark(name, cloneTarget(t))
		case models.TargetsEqual(t, b):
			result.SetBookmark(name, cloneTarget(o))
		default:
			result.SetBookmark(name, conflictTargets(o, t))
		}
	}
}

func mergeWorkspaces(result, base, ours, theirs *models.View) {
	names := make(map[string]bool)
	for ws := range base.Workspaces {
		names[ws] = true
	}
	for ws := range ours.Workspaces {
		names[ws] = true
	}
	for ws := range theirs.Workspaces {
		names[ws] = true
	}

	for ws := range names {
		b := base.Workspaces[ws]
		o := ours.Workspaces[ws]
		t := theirs.Workspaces[ws]

		var winner models.CommitID
		switch {
		case o == t:
			winner = o
		case o == b:
			winner = t
		default:
			winner = o
		}
		if winner != "" {
			result.Workspaces[ws] = winner
		}
	}
}

func cloneTarget(t *models.BookmarkTarget) *models.BookmarkTarget {
	if t == nil {
		return nil
	}
	return t.Clone()
}

// conflictTargets combines two bookmark states that both moved since the
// base. Local targets become conflict candidates; remote-tracking memory
// merges per remote with ours winning on double change.
func conflictTargets(o, t *models.BookmarkTarget) *models.BookmarkTarget {
	merged := &models.BookmarkTarget{}
	var candidates []models.CommitID
	for _, side := range []*models.BookmarkTarget{o, t} {
		if side == nil {
			continue
		}
		if len(side.Conflict) > 0 {
			candidates = append(candidates, side.Conflict...)
		} else if side.Local != "" {
			candidates = append(candidates, side.Local)
		}
		for remote, target := range side.Remotes {
			if merged.RemoteTarget(remote) == "" {
				merged.SetRemoteTarget(remote, target)
			}
		}
	}
	merged.SetConflict(candidates)
	if merged.IsAbsent() {
		return nil
	}
	return merged
}
