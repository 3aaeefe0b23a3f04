package core

import (
	"fmt"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Restore rewinds repository-visible state to the view of the given
// operation. The restore is itself logged as a new operation whose view
// equals the target's, so it is undoable like anything else.
func (r *Repo) Restore(opID models.OperationID) (*models.Operation, error) {
	target, err := r.Ops.GetOperation(opID)
	if err != nil {
		return nil, err
	}
	tx := r.StartTransaction()
	tx.SetView(target.View.Clone())
	return tx.Commit(fmt.Sprintf("restore to operation %s", target.ShortID()))
}

// Undo applies the inverse of one operation's view delta to the current
// view. Unlike Restore this composes: undoing an old operation after later
// ones reverts only that operation's changes. Implemented as a three-way
// view merge with the target's view as the base: whatever the target
// changed relative to its parent is changed back, everything since is kept.
func (r *Repo) Undo(opID models.OperationID) (*models.Operation, error) {
	target, err := r.Ops.GetOperation(opID)
	if err != nil {
		return nil, err
	}

	before := models.NewView()
	if len(target.Parents) > 0 {
		// A merge operation's delta is taken against its first parent.
		parent, err := r.Ops.GetOperation(target.Parents[0])
		if err != nil {
			return nil, err
		}
		before = parent.View
	}

	tx := r.StartTransaction()
	tx.SetView(MergeViews(target.View, tx.View(), before))
	return tx.Commit(fmt.Sprintf("undo operation %s", target.ShortID()))
}
