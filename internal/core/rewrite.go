package core

import (
	"fmt"
	"sort"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/models"
)

// AbandonOptions tunes how Abandon treats pointers and descendant content.
type AbandonOptions struct {
	// RetainBookmarks redirects bookmarks on abandoned commits to their
	// replacements instead of deleting them.
	RetainBookmarks bool
	// RestoreDescendants reapplies each rewritten descendant's content diff
	// against its new parent set, so the descendant's visible content
	// survives the relinking.
	RestoreDescendants bool
}

// abandonPlan is the fully validated outcome of the planning pass. Nothing
// in it has touched the backend or the view yet.
type abandonPlan struct {
	targets    map[models.CommitID]bool
	order      []models.CommitID
	oldCommits map[models.CommitID]*models.Commit
	// newParents holds, per closure commit, its substituted parent list.
	// Entries still use pre-rewrite ids of descendants; the apply pass maps
	// them to rewritten ids.
	newParents map[models.CommitID][]models.CommitID
	rewritten  map[models.CommitID]bool
	needMerge  map[models.CommitID]bool
}

// Abandon hides the target commits from the view and rebases every visible
// descendant onto the abandoned commits' parents. Planning is separated from
// application: all validation, including the root-as-merge-parent capability
// check for both rebased descendants and synthesized pointer commits, runs
// before the first write, so a failed abandon mutates nothing.
func (r *Repo) Abandon(tx *Transaction, targets []models.CommitID, opts AbandonOptions) (*models.AbandonReport, error) {
	plan, err := r.planAbandon(tx.View(), targets, opts)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return &models.AbandonReport{}, nil
	}
	return r.applyAbandon(tx.View(), plan, opts)
}

func (r *Repo) planAbandon(view *models.View, targets []models.CommitID, opts AbandonOptions) (*abandonPlan, error) {
	visible, err := r.visibleCommits(view)
	if err != nil {
		return nil, err
	}

	targetSet := make(map[models.CommitID]bool)
	for _, t := range targets {
		if t == models.RootCommitID {
			return nil, fmt.Errorf("cannot abandon the root commit")
		}
		// Hidden targets were already abandoned; skipping them makes a
		// repeated abandon a clean no-op.
		if visible[t] {
			targetSet[t] = true
		}
	}
	if len(targetSet) == 0 {
		return nil, nil
	}

	order, err := r.descendantClosure(view, targetSet)
	if err != nil {
		return nil, err
	}

	plan := &abandonPlan{
		targets:    targetSet,
		order:      order,
		oldCommits: make(map[models.CommitID]*models.Commit, len(order)),
		newParents: make(map[models.CommitID][]models.CommitID, len(order)),
		rewritten:  make(map[models.CommitID]bool),
		needMerge:  make(map[models.CommitID]bool),
	}

	for _, id := range order {
		commit, err := r.Backend.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		plan.oldCommits[id] = commit
		subst := substituteParents(commit.Parents, targetSet, plan.newParents)
		plan.newParents[id] = subst
		if !targetSet[id] && !sameIDs(commit.Parents, subst) {
			plan.rewritten[id] = true
			if err := backend.ValidateParents(subst); err != nil {
				return nil, err
			}
		}
	}

	// Single-valued pointers (working copies, retained bookmark targets)
	// on an abandoned commit with several replacement parents need one
	// synthesized empty merge commit to land on. Validate those parent
	// lists now too.
	for id := range targetSet {
		if len(plan.newParents[id]) < 2 {
			continue
		}
		if !hasSingleValuedPointer(view, id, opts) {
			continue
		}
		if err := backend.ValidateParents(plan.newParents[id]); err != nil {
			return nil, err
		}
		plan.needMerge[id] = true
	}
	return plan, nil
}

func (r *Repo) applyAbandon(view *models.View, plan *abandonPlan, opts AbandonOptions) (*models.AbandonReport, error) {
	// Old id to rewritten id, for descendants only. Targets have no single
	// replacement; redirect resolves them through newParents.
	mapping := make(map[models.CommitID]models.CommitID)

	for _, id := range plan.order {
		if !plan.rewritten[id] {
			continue
		}
		old := plan.oldCommits[id]
		parents := mapIDs(plan.newParents[id], mapping)
		content := old.ContentRef
		if opts.RestoreDescendants {
			oldBase, err := r.mergedParentContent(old.Parents)
			if err != nil {
				return nil, err
			}
			newBase, err := r.mergedParentContent(parents)
			if err != nil {
				return nil, err
			}
			content, err = r.Backend.MergeContent(oldBase, old.ContentRef, newBase)
			if err != nil {
				return nil, err
			}
		}
		rewritten, err := r.Backend.WriteCommit(parents, old.ChangeID, content, old.Message, old.Author)
		if err != nil {
			return nil, err
		}
		mapping[id] = rewritten.ID
	}

	// Synthesized merges come after the descendant rewrites so their parent
	// lists resolve through the final mapping.
	merged := make(map[models.CommitID]models.CommitID)
	for _, id := range plan.order {
		if !plan.needMerge[id] {
			continue
		}
		parents := mapIDs(plan.newParents[id], mapping)
		commit, err := r.newEmptyCommit(parents)
		if err != nil {
			return nil, err
		}
		merged[id] = commit.ID
	}

	// redirect resolves any pre-abandon commit id to the commits that stand
	// in for it afterwards.
	redirect := func(id models.CommitID) []models.CommitID {
		if newID, ok := mapping[id]; ok {
			return []models.CommitID{newID}
		}
		if !plan.targets[id] {
			return []models.CommitID{id}
		}
		if synth, ok := merged[id]; ok {
			return []models.CommitID{synth}
		}
		return mapIDs(plan.newParents[id], mapping)
	}

	report := &models.AbandonReport{
		RebasedDescendants: len(mapping),
		NewWorkingCopy:     make(map[string]models.CommitID),
	}
	for i := len(plan.order) - 1; i >= 0; i-- {
		id := plan.order[i]
		if !plan.targets[id] {
			continue
		}
		old := plan.oldCommits[id]
		report.Abandoned = append(report.Abandoned, models.AbandonedCommit{
			ID:       id,
			ChangeID: old.ChangeID,
			Message:  old.Message,
		})
	}

	for _, head := range append([]models.CommitID(nil), view.Heads...) {
		if !plan.targets[head] && !plan.rewritten[head] {
			continue
		}
		view.RemoveHead(head)
		for _, repl := range redirect(head) {
			view.AddHead(repl)
		}
	}
	for _, synth := range merged {
		view.AddHead(synth)
	}

	for ws, wc := range view.Workspaces {
		if !plan.targets[wc] && !plan.rewritten[wc] {
			continue
		}
		repl := redirect(wc)
		view.Workspaces[ws] = repl[0]
		view.AddHead(repl[0])
		report.NewWorkingCopy[ws] = repl[0]
	}

	for _, name := range view.BookmarkNames() {
		deleted, err := r.redirectBookmark(view, name, plan, redirect, opts)
		if err != nil {
			return nil, err
		}
		if deleted {
			report.DeletedBookmarks = append(report.DeletedBookmarks, name)
		}
	}
	sort.Strings(report.DeletedBookmarks)

	if err := r.pruneHeads(view); err != nil {
		return nil, err
	}
	return report, nil
}

// redirectBookmark rewrites one bookmark's local state through the rewrite
// mapping. Remote-tracking memory is never touched here; only git sync moves
// it. Returns true when the local bookmark was deleted.
func (r *Repo) redirectBookmark(view *models.View, name string, plan *abandonPlan, redirect func(models.CommitID) []models.CommitID, opts AbandonOptions) (bool, error) {
	bt := view.Bookmark(name)
	if bt == nil || !bt.HasLocal() {
		return false, nil
	}

	candidates := bt.Conflict
	if len(candidates) == 0 {
		candidates = []models.CommitID{bt.Local}
	}

	changed := false
	var next []models.CommitID
	for _, c := range candidates {
		switch {
		case plan.targets[c]:
			changed = true
			if opts.RetainBookmarks {
				next = append(next, redirect(c)...)
			}
		case plan.rewritten[c]:
			changed = true
			next = append(next, redirect(c)...)
		default:
			next = append(next, c)
		}
	}
	if !changed {
		return false, nil
	}

	nb := bt.Clone()
	nb.SetConflict(next)
	if !nb.HasLocal() {
		if len(nb.Remotes) == 0 {
			view.SetBookmark(name, nil)
		} else {
			view.SetBookmark(name, nb)
		}
		return true, nil
	}
	view.SetBookmark(name, nb)
	return false, nil
}

// hasSingleValuedPointer reports whether any pointer that can hold only one
// commit references the given target.
func hasSingleValuedPointer(view *models.View, id models.CommitID, opts AbandonOptions) bool {
	for _, wc := range view.Workspaces {
		if wc == id {
			return true
		}
	}
	if !opts.RetainBookmarks {
		return false
	}
	for _, name := range view.BookmarkNames() {
		bt := view.Bookmark(name)
		if bt != nil && len(bt.Conflict) == 0 && bt.Local == id {
			return true
		}
	}
	return false
}

// substituteParents replaces abandoned parents with their already-computed
// replacement lists, transitively, deduplicating on first occurrence. The
// dedup matters: flattening can reach the same ancestor through two paths,
// and a merge child of an abandoned chain link must not end up with a
// duplicated parent entry.
func substituteParents(parents []models.CommitID, abandoned map[models.CommitID]bool, replacements map[models.CommitID][]models.CommitID) []models.CommitID {
	out := make([]models.CommitID, 0, len(parents))
	seen := make(map[models.CommitID]bool)
	add := func(id models.CommitID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range parents {
		if abandoned[p] {
			for _, repl := range replacements[p] {
				add(repl)
			}
		} else {
			add(p)
		}
	}
	return out
}

func mapIDs(ids []models.CommitID, mapping map[models.CommitID]models.CommitID) []models.CommitID {
	out := make([]models.CommitID, 0, len(ids))
	seen := make(map[models.CommitID]bool)
	for _, id := range ids {
		if newID, ok := mapping[id]; ok {
			id = newID
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sameIDs(a, b []models.CommitID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
