// Package core implements the version-control engine: the transactional
// operation log, the commit-graph rewrite engine, and the git ref
// synchronization layer. Every mutation of repository-visible state flows
// through a Transaction and lands in the operation log.
package core

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/models"
	"github.com/kilupskalvis/ovc/internal/store"
)

// DefaultWorkspace names the workspace created at repository init.
const DefaultWorkspace = "default"

// Repo ties the commit backend and the operation log together and tracks
// the current operation head. At most one Transaction may be open at a time.
type Repo struct {
	Backend backend.Backend
	Ops     *store.OpStore

	actor  string
	head   *models.Operation
	txOpen bool
}

// Init creates a brand new repository: a root operation over an empty view,
// then a first transaction adding the default workspace with an empty
// working-copy commit on the root.
func Init(b backend.Backend, ops *store.OpStore, actor string) (*Repo, error) {
	rootOp := &models.Operation{
		View:        models.NewView(),
		Description: "initialize repo",
		Actor:       actor,
		Timestamp:   time.Now(),
	}
	rootOp.ID = models.GenerateOperationID(nil, rootOp.View, rootOp.Description, rootOp.Actor, rootOp.Timestamp)
	if err := ops.AppendOperation(rootOp); err != nil {
		return nil, err
	}
	if err := ops.UpdateHeads(rootOp.ID, nil); err != nil {
		return nil, err
	}

	r := &Repo{Backend: b, Ops: ops, actor: actor, head: rootOp}

	tx := r.StartTransaction()
	wc, err := r.newEmptyCommit([]models.CommitID{models.RootCommitID})
	if err != nil {
		tx.Discard()
		return nil, err
	}
	view := tx.View()
	view.AddHead(wc.ID)
	view.Workspaces[DefaultWorkspace] = wc.ID
	if _, err := tx.Commit(fmt.Sprintf("add workspace '%s'", DefaultWorkspace)); err != nil {
		return nil, err
	}
	return r, nil
}

// Load opens an existing repository. Divergent operation heads left behind
// by concurrent processes are reconciled immediately with a merge operation.
func Load(b backend.Backend, ops *store.OpStore, actor string) (*Repo, error) {
	heads, err := ops.Heads()
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return nil, fmt.Errorf("operation log is empty; repository not initialized")
	}

	r := &Repo{Backend: b, Ops: ops, actor: actor}
	head, err := ops.GetOperation(heads[0])
	if err != nil {
		return nil, err
	}
	r.head = head

	if len(heads) > 1 {
		if err := r.reconcileHeads(heads); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// reconcileHeads merges divergent operation heads into a single new head.
func (r *Repo) reconcileHeads(heads []models.OperationID) error {
	log.Debug("reconciling divergent operation heads", "count", len(heads))
	tx := r.StartTransaction()
	if _, err := tx.Commit("reconcile divergent operations"); err != nil {
		return err
	}
	return nil
}

// Head returns the current operation head.
func (r *Repo) Head() *models.Operation {
	return r.head
}

// View returns the current view. Callers must not mutate it; open a
// Transaction instead.
func (r *Repo) View() *models.View {
	return r.head.View
}

// Actor returns the identity recorded on operations this repo commits.
func (r *Repo) Actor() string {
	return r.actor
}

// NewCommit writes a commit on the given parents and moves the workspace's
// working copy to it. Parents default to the workspace's current working
// copy when empty. Consumed parents stop being heads; the new commit starts
// as one.
func (r *Repo) NewCommit(tx *Transaction, parents []models.CommitID, message, workspace string) (*models.Commit, error) {
	view := tx.View()
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	if len(parents) == 0 {
		wc, ok := view.Workspaces[workspace]
		if !ok {
			return nil, fmt.Errorf("workspace %q has no working copy", workspace)
		}
		parents = []models.CommitID{wc}
	}
	if err := backend.ValidateParents(parents); err != nil {
		return nil, err
	}

	content, err := r.mergedParentContent(parents)
	if err != nil {
		return nil, err
	}
	changeID := models.NewChangeID(fmt.Sprintf("%s|%d", r.actor, time.Now().UnixNano()))
	commit, err := r.Backend.WriteCommit(parents, changeID, content, message, r.actor)
	if err != nil {
		return nil, err
	}

	view.AddHead(commit.ID)
	for _, p := range parents {
		view.RemoveHead(p)
	}
	view.Workspaces[workspace] = commit.ID
	return commit, nil
}

// newEmptyCommit writes a commit with no content of its own on the given
// parents. Content is the merged parent content, so the commit is "empty"
// in the sense of changing nothing.
func (r *Repo) newEmptyCommit(parents []models.CommitID) (*models.Commit, error) {
	content, err := r.mergedParentContent(parents)
	if err != nil {
		return nil, err
	}
	changeID := models.NewChangeID(fmt.Sprintf("%s|%d", r.actor, time.Now().UnixNano()))
	return r.Backend.WriteCommit(parents, changeID, content, "", r.actor)
}

// mergedParentContent folds the parents' content refs through the backend's
// merge capability, first parent as the base side.
func (r *Repo) mergedParentContent(parents []models.CommitID) (string, error) {
	if len(parents) == 0 {
		return models.EmptyContentRef, nil
	}
	first, err := r.Backend.ReadCommit(parents[0])
	if err != nil {
		return "", err
	}
	content := first.ContentRef
	for _, p := range parents[1:] {
		c, err := r.Backend.ReadCommit(p)
		if err != nil {
			return "", err
		}
		content, err = r.Backend.MergeContent(first.ContentRef, content, c.ContentRef)
		if err != nil {
			return "", err
		}
	}
	return content, nil
}
