// Package revset resolves revision expressions to commit id sets against one
// view snapshot. The grammar is deliberately small: symbolic forms cover what
// the rewrite and sync layers consume, everything else is an id prefix.
package revset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/models"
)

// Resolver evaluates expressions against one view. Hidden commits are still
// addressable by id or unique id prefix through the backend; every other
// form sees only visible commits.
type Resolver struct {
	Backend   backend.Backend
	View      *models.View
	Workspace string
}

// Resolve evaluates one expression. Supported forms:
//
//	none()            the empty set
//	root()            the root commit
//	@                 the working-copy commit of the resolver's workspace
//	descendants(X)    X plus every visible descendant
//	X::               shorthand for descendants(X)
//	NAME              a bookmark's local target
//	HEXPREFIX         a commit id or unique id prefix
//
// Unions are built by resolving several expressions and combining the
// results; the grammar itself has no union operator.
func (r *Resolver) Resolve(expr string) ([]models.CommitID, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty revset expression")
	}

	switch {
	case expr == "none()":
		return nil, nil
	case expr == "root()":
		return []models.CommitID{models.RootCommitID}, nil
	case expr == "@":
		return r.workingCopy()
	case strings.HasSuffix(expr, "::"):
		return r.descendants(strings.TrimSuffix(expr, "::"))
	case strings.HasPrefix(expr, "descendants(") && strings.HasSuffix(expr, ")"):
		inner := expr[len("descendants(") : len(expr)-1]
		return r.descendants(inner)
	}

	id, err := r.resolveSymbol(expr)
	if err != nil {
		return nil, err
	}
	return []models.CommitID{id}, nil
}

func (r *Resolver) workingCopy() ([]models.CommitID, error) {
	ws := r.Workspace
	if ws == "" {
		ws = "default"
	}
	wc, ok := r.View.Workspaces[ws]
	if !ok {
		return nil, fmt.Errorf("workspace %q has no working copy", ws)
	}
	return []models.CommitID{wc}, nil
}

func (r *Resolver) descendants(inner string) ([]models.CommitID, error) {
	start, err := r.resolveSymbol(strings.TrimSpace(inner))
	if err != nil {
		return nil, err
	}

	visible, children, err := r.childIndex()
	if err != nil {
		return nil, err
	}
	if !visible[start] {
		// Descendants of a hidden commit inside the visible graph is empty
		// except for the commit itself.
		return []models.CommitID{start}, nil
	}

	closure := make(map[models.CommitID]bool)
	queue := []models.CommitID{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if closure[current] {
			continue
		}
		closure[current] = true
		queue = append(queue, children[current]...)
	}

	out := make([]models.CommitID, 0, len(closure))
	for id := range closure {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// resolveSymbol resolves a single-commit form: @, a bookmark name, or an id
// prefix. Bookmarks win over id prefixes on ambiguity, matching the rule
// that names shadow hex.
func (r *Resolver) resolveSymbol(sym string) (models.CommitID, error) {
	if sym == "@" {
		ids, err := r.workingCopy()
		if err != nil {
			return "", err
		}
		return ids[0], nil
	}
	if sym == "root()" {
		return models.RootCommitID, nil
	}

	if bt := r.View.Bookmark(sym); bt != nil && bt.HasLocal() {
		if bt.IsConflicted() {
			return "", fmt.Errorf("bookmark %q is conflicted; resolve it or use a commit id", sym)
		}
		return bt.Local, nil
	}

	if !isHexPrefix(sym) {
		return "", fmt.Errorf("revision %q doesn't exist", sym)
	}
	return r.resolvePrefix(sym)
}

// resolvePrefix matches an id prefix, preferring visible commits. A prefix
// that is ambiguous among visible commits is an error even if one of them is
// an exact match's ancestor; hidden commits are consulted only when nothing
// visible matches.
func (r *Resolver) resolvePrefix(prefix string) (models.CommitID, error) {
	visible, err := r.visibleSet()
	if err != nil {
		return "", err
	}

	var matches []models.CommitID
	for id := range visible {
		if strings.HasPrefix(string(id), prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		hidden, err := r.Backend.ResolvePrefix(prefix)
		if err != nil {
			return "", err
		}
		switch len(hidden) {
		case 1:
			return hidden[0], nil
		case 0:
			return "", fmt.Errorf("revision %q doesn't exist", prefix)
		default:
			return "", fmt.Errorf("commit id prefix %q is ambiguous", prefix)
		}
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
		return "", fmt.Errorf("commit id prefix %q is ambiguous (%s, %s, ...)",
			prefix, matches[0].ShortID(), matches[1].ShortID())
	}
}

func (r *Resolver) visibleSet() (map[models.CommitID]bool, error) {
	seen := make(map[models.CommitID]bool)
	queue := append([]models.CommitID(nil), r.View.Heads...)
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

func (r *Resolver) childIndex() (map[models.CommitID]bool, map[models.CommitID][]models.CommitID, error) {
	visible, err := r.visibleSet()
	if err != nil {
		return nil, nil, err
	}
	children := make(map[models.CommitID][]models.CommitID)
	for id := range visible {
		commit, err := r.Backend.ReadCommit(id)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range commit.Parents {
			children[p] = append(children[p], id)
		}
	}
	return visible, children, nil
}

func isHexPrefix(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
