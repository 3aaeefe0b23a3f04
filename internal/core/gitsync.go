package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilupskalvis/ovc/internal/gitref"
	"github.com/kilupskalvis/ovc/internal/models"
)

// GitRemote names the single external ref store tracked in bookmark memory.
const GitRemote = "git"

// ImportOptions tunes how newly seen external refs are handled.
type ImportOptions struct {
	// AutoTrack creates a local bookmark for every new external ref. When
	// off, only the remote-tracking memory is recorded.
	AutoTrack bool
}

// TrackingState classifies one tracked bookmark against its remote memory.
type TrackingState string

const (
	TrackingInSync   TrackingState = "in-sync"
	TrackingAhead    TrackingState = "ahead"
	TrackingBehind   TrackingState = "behind"
	TrackingDiverged TrackingState = "diverged"
)

// TrackingStatus is the per-remote position of a local bookmark.
type TrackingStatus struct {
	State  TrackingState
	Ahead  int
	Behind int
}

// ImportRefs reconciles the external ref store's heads namespace into the
// transaction's view. The whole import is an ordinary view mutation, so
// undoing the resulting operation reverts every bookmark and tracking-memory
// change it made.
func (r *Repo) ImportRefs(tx *Transaction, refs gitref.RefStore, opts ImportOptions) (*models.ImportReport, error) {
	snapshot, err := refs.List(gitref.HeadsNamespace)
	if err != nil {
		return nil, err
	}

	view := tx.View()
	report := models.NewImportReport()

	names := make(map[string]bool)
	for ref := range snapshot {
		names[strings.TrimPrefix(ref, gitref.HeadsNamespace)] = true
	}
	for _, name := range view.BookmarkNames() {
		if view.Bookmark(name).RemoteTarget(GitRemote) != "" {
			names[name] = true
		}
	}

	for _, name := range sortedNames(names) {
		external := snapshot[gitref.HeadsNamespace+name]
		if external != "" {
			// Refuse to import refs pointing at objects the backend has
			// never seen; a dangling bookmark would poison every later
			// graph walk.
			if _, err := r.Backend.ReadCommit(external); err != nil {
				return nil, fmt.Errorf("import of %s%s: %w", gitref.HeadsNamespace, name, err)
			}
		}

		change := r.importOne(view, name, external, opts)
		if change != "" {
			report.Changes[name] = change
		}
		if external != "" {
			view.AddHead(external)
		}
	}

	if err := r.pruneHeads(view); err != nil {
		return nil, err
	}
	return report, nil
}

// importOne applies one external ref state to the view and classifies the
// outcome. An empty return means the ref was already in sync.
func (r *Repo) importOne(view *models.View, name string, external models.CommitID, opts ImportOptions) models.BookmarkChange {
	bt := view.Bookmark(name)
	var tracked models.CommitID
	if bt != nil {
		tracked = bt.RemoteTarget(GitRemote)
	}

	switch {
	case external == tracked:
		return ""

	case tracked == "":
		// First sighting of this ref.
		nb := &models.BookmarkTarget{}
		if bt != nil {
			nb = bt.Clone()
		}
		nb.SetRemoteTarget(GitRemote, external)
		if opts.AutoTrack && !nb.HasLocal() {
			nb.Local = external
		}
		view.SetBookmark(name, nb)
		return models.BookmarkCreated

	case external == "":
		// External side deleted the ref. The local bookmark follows unless
		// it moved independently since the last sync.
		nb := bt.Clone()
		localMoved := nb.HasLocal() && (nb.Local != tracked || len(nb.Conflict) > 0)
		nb.SetRemoteTarget(GitRemote, "")
		if !localMoved {
			nb.Local = ""
			nb.Conflict = nil
		}
		view.SetBookmark(name, nb)
		if localMoved {
			return models.BookmarkUpdated
		}
		return models.BookmarkDeleted

	default:
		// External side moved the ref.
		nb := bt.Clone()
		nb.SetRemoteTarget(GitRemote, external)
		switch {
		case !nb.HasLocal() || nb.Local == external && len(nb.Conflict) == 0:
			view.SetBookmark(name, nb)
			return models.BookmarkUpdated
		case nb.Local == tracked && len(nb.Conflict) == 0:
			// Local never moved; follow the remote.
			nb.Local = external
			view.SetBookmark(name, nb)
			return models.BookmarkUpdated
		default:
			// Both sides moved. Keep every candidate; divergence is sticky
			// until the user resolves it.
			candidates := append([]models.CommitID(nil), nb.Conflict...)
			if len(candidates) == 0 {
				candidates = []models.CommitID{nb.Local}
			}
			candidates = append(candidates, external)
			nb.SetConflict(candidates)
			view.SetBookmark(name, nb)
			return models.BookmarkConflicted
		}
	}
}

// ExportRefs writes every out-of-sync local bookmark to the external ref
// store. Each ref is attempted independently; failures are collected, never
// fatal to siblings. Tracking memory is updated in the view only for refs
// that were actually written, and the external write itself is outside the
// undo model: undoing the export reverts the tracking memory but leaves the
// external store as written.
func (r *Repo) ExportRefs(tx *Transaction, refs gitref.RefStore) (*models.ExportReport, error) {
	view := tx.View()
	report := &models.ExportReport{}

	for _, name := range view.BookmarkNames() {
		bt := view.Bookmark(name)
		tracked := bt.RemoteTarget(GitRemote)
		ref := gitref.HeadsNamespace + name

		if bt.IsConflicted() {
			report.Results = append(report.Results, models.ExportResult{
				Ref:    ref,
				Reason: "bookmark is conflicted",
			})
			continue
		}
		if bt.Local == tracked {
			continue
		}

		if bt.Local == "" {
			if err := refs.Delete(ref); err != nil {
				report.Results = append(report.Results, models.ExportResult{Ref: ref, Reason: err.Error()})
				continue
			}
			nb := bt.Clone()
			nb.SetRemoteTarget(GitRemote, "")
			view.SetBookmark(name, nb)
			report.Results = append(report.Results, models.ExportResult{Ref: ref})
			continue
		}

		if err := refs.Set(ref, bt.Local); err != nil {
			report.Results = append(report.Results, models.ExportResult{Ref: ref, Reason: err.Error()})
			continue
		}
		nb := bt.Clone()
		nb.SetRemoteTarget(GitRemote, bt.Local)
		view.SetBookmark(name, nb)
		report.Results = append(report.Results, models.ExportResult{Ref: ref})
	}
	return report, nil
}

// BookmarkTracking computes the ahead/behind position of a bookmark relative
// to its remote-tracking memory. Returns nil for untracked bookmarks.
func (r *Repo) BookmarkTracking(bt *models.BookmarkTarget) (*TrackingStatus, error) {
	if bt == nil {
		return nil, nil
	}
	tracked := bt.RemoteTarget(GitRemote)
	if tracked == "" || bt.Local == "" {
		return nil, nil
	}
	if bt.Local == tracked {
		return &TrackingStatus{State: TrackingInSync}, nil
	}
	ahead, err := r.graphDistance(bt.Local, tracked)
	if err != nil {
		return nil, err
	}
	behind, err := r.graphDistance(tracked, bt.Local)
	if err != nil {
		return nil, err
	}
	st := &TrackingStatus{Ahead: ahead, Behind: behind}
	switch {
	case ahead > 0 && behind > 0:
		st.State = TrackingDiverged
	case ahead > 0:
		st.State = TrackingAhead
	case behind > 0:
		st.State = TrackingBehind
	default:
		st.State = TrackingInSync
	}
	return st, nil
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
