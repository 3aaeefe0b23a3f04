package core

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Transaction is a mutable builder over a base view. Mutations accumulate in
// a staging copy; nothing is visible until Commit materializes a new View
// and appends a new Operation. A discarded transaction leaves no trace.
type Transaction struct {
	repo   *Repo
	base   *models.Operation
	view   *models.View
	closed bool
}

// StartTransaction opens a transaction over the current view. Only one
// transaction may be open per repo; parallel callers must start independent
// transactions from a committed view and rely on merge-on-commit.
func (r *Repo) StartTransaction() *Transaction {
	if r.txOpen {
		panic("transaction already open for this repo")
	}
	r.txOpen = true
	return &Transaction{
		repo: r,
		base: r.head,
		view: r.head.View.Clone(),
	}
}

// View returns the staging view. Mutations here are private to the
// transaction until Commit.
func (tx *Transaction) View() *models.View {
	return tx.view
}

// SetView replaces the entire staging view (used by restore/undo).
func (tx *Transaction) SetView(view *models.View) {
	tx.view = view
}

// Base returns the operation the transaction started from.
func (tx *Transaction) Base() *models.Operation {
	return tx.base
}

// Discard abandons the transaction without appending anything.
func (tx *Transaction) Discard() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.repo.txOpen = false
}

// Commit materializes the staging view into a new Operation and publishes
// it. If the recorded head has diverged from the transaction's base (a
// concurrent transaction committed first), the new operation takes every
// current head as a parent and its view is produced by the deterministic
// merge rule. Commits never fail on concurrency, they merge.
func (tx *Transaction) Commit(description string) (*models.Operation, error) {
	if tx.closed {
		return nil, fmt.Errorf("transaction already closed")
	}

	heads, err := tx.repo.Ops.Heads()
	if err != nil {
		return nil, err
	}

	parents := []models.OperationID{tx.base.ID}
	newView := tx.view
	for _, h := range heads {
		if h == tx.base.ID {
			continue
		}
		other, err := tx.repo.Ops.GetOperation(h)
		if err != nil {
			return nil, err
		}
		newView = MergeViews(tx.base.View, newView, other.View)
		parents = append(parents, h)
	}
	if len(parents) > 1 {
		if err := tx.repo.pruneHeads(newView); err != nil {
			return nil, err
		}
		log.Debug("merging concurrent operation heads", "parents", len(parents))
	}

	op := &models.Operation{
		Parents:     parents,
		View:        newView,
		Description: description,
		Actor:       tx.repo.actor,
		Timestamp:   time.Now(),
	}
	op.ID = models.GenerateOperationID(op.Parents, op.View, op.Description, op.Actor, op.Timestamp)

	// Durable append first; the head swap is a separate atomic step. A
	// crash in between is healed by the leaf scan on the next load.
	if err := tx.repo.Ops.AppendOperation(op); err != nil {
		return nil, err
	}
	if err := tx.repo.Ops.UpdateHeads(op.ID, parents); err != nil {
		return nil, err
	}

	tx.closed = true
	tx.repo.txOpen = false
	tx.repo.head = op
	log.Debug("committed operation", "op", op.ShortID(), "description", description)
	return op, nil
}
