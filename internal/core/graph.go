package core

import (
	"sort"

	"github.com/kilupskalvis/ovc/internal/models"
)

// ancestors returns every commit reachable from the given starting points,
// including the starting points themselves. BFS with an explicit queue;
// merge commits contribute all parents.
func (r *Repo) ancestors(start ...models.CommitID) (map[models.CommitID]bool, error) {
	seen := make(map[models.CommitID]bool)
	queue := append([]models.CommitID(nil), start...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == "" || seen[current] {
			continue
		}
		seen[current] = true

		commit, err := r.Backend.ReadCommit(current)
		if err != nil {
			return nil, err
		}
		queue = append(queue, commit.Parents...)
	}
	return seen, nil
}

// visibleCommits returns the set of commits reachable from the view's heads.
// Anything outside this set is hidden (abandoned or rewritten away).
func (r *Repo) visibleCommits(view *models.View) (map[models.CommitID]bool, error) {
	return r.ancestors(view.Heads...)
}

// childIndex builds a parent-to-children index over the given commit set.
func (r *Repo) childIndex(commits map[models.CommitID]bool) (map[models.CommitID][]models.CommitID, error) {
	children := make(map[models.CommitID][]models.CommitID)
	ids := sortedIDs(commits)
	for _, id := range ids {
		commit, err := r.Backend.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		for _, p := range commit.Parents {
			children[p] = append(children[p], id)
		}
	}
	return children, nil
}

// pruneHeads removes heads that are ancestors of other heads, restoring the
// invariant that the head set contains only maximal elements.
func (r *Repo) pruneHeads(view *models.View) error {
	if len(view.Heads) < 2 {
		return nil
	}
	nonMaximal := make(map[models.CommitID]bool)
	for _, h := range view.Heads {
		commit, err := r.Backend.ReadCommit(h)
		if err != nil {
			return err
		}
		// Everything reachable through h's parents is dominated by h.
		reach, err := r.ancestors(commit.Parents...)
		if err != nil {
			return err
		}
		for _, other := range view.Heads {
			if other != h && reach[other] {
				nonMaximal[other] = true
			}
		}
	}
	for id := range nonMaximal {
		view.RemoveHead(id)
	}
	return nil
}

// graphDistance counts commits reachable from a but not from b. Used for
// ahead/behind reporting on tracked bookmarks.
func (r *Repo) graphDistance(a, b models.CommitID) (int, error) {
	reachA, err := r.ancestors(a)
	if err != nil {
		return 0, err
	}
	reachB, err := r.ancestors(b)
	if err != nil {
		return 0, err
	}
	n := 0
	for id := range reachA {
		if !reachB[id] && id != models.RootCommitID {
			n++
		}
	}
	return n, nil
}

// descendantClosure returns the targets plus every visible descendant, in
// topological order (parents before children). Explicit worklist, no
// recursion, so stack depth is bounded on large graphs.
func (r *Repo) descendantClosure(view *models.View, targets map[models.CommitID]bool) ([]models.CommitID, error) {
	visible, err := r.visibleCommits(view)
	if err != nil {
		return nil, err
	}
	children, err := r.childIndex(visible)
	if err != nil {
		return nil, err
	}

	closure := make(map[models.CommitID]bool)
	queue := sortedIDs(targets)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if closure[current] {
			continue
		}
		closure[current] = true
		queue = append(queue, children[current]...)
	}

	// Kahn's algorithm restricted to the closure: a node is ready once all
	// of its in-closure parents are emitted.
	pending := make(map[models.CommitID]int)
	for id := range closure {
		commit, err := r.Backend.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, p := range commit.Parents {
			if closure[p] {
				n++
			}
		}
		pending[id] = n
	}

	var ready []models.CommitID
	for id, n := range pending {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]models.CommitID, 0, len(closure))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)
		for _, child := range children[current] {
			if !closure[child] {
				continue
			}
			pending[child]--
			if pending[child] == 0 {
				ready = append(ready, child)
				sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
			}
		}
	}
	return order, nil
}

func sortedIDs(set map[models.CommitID]bool) []models.CommitID {
	ids := make([]models.CommitID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
