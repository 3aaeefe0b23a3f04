// Package backend defines the commit-storage capability consumed by the
// core: durable commit records, content-addressed ID assignment, and the
// opaque content-merge primitive. Implementations decide which graph shapes
// they can represent; shapes they cannot represent fail with a
// CapabilityError before anything is written.
package backend

import (
	"errors"

	"github.com/kilupskalvis/ovc/internal/models"
)

// ErrNotFound is returned when a commit does not exist.
var ErrNotFound = errors.New("commit not found")

// Backend stores commits durably and assigns content-addressed identifiers.
type Backend interface {
	// ReadCommit returns the commit with the given ID, or ErrNotFound.
	ReadCommit(id models.CommitID) (*models.Commit, error)
	// WriteCommit creates a commit with the given shape and assigns its ID.
	// Writing an identical commit twice returns the same record.
	WriteCommit(parents []models.CommitID, changeID models.ChangeID, contentRef, message, author string) (*models.Commit, error)
	// ResolvePrefix returns every commit ID starting with the given hex
	// prefix.
	ResolvePrefix(prefix string) ([]models.CommitID, error)
	// MergeContent three-way merges opaque content references. The caller
	// never inspects content; resolution is entirely the backend's concern.
	MergeContent(base, ours, theirs string) (string, error)
	Close() error
}

// CapabilityError reports a requested graph shape the backend cannot
// represent. It is fatal to the enclosing transaction, which must not
// partially apply.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	return e.Reason
}

// ErrRootAsMergeParent constructs the capability error for a merge commit
// that would carry the root commit as one of its parents.
func ErrRootAsMergeParent() error {
	return &CapabilityError{
		Reason: "the backend does not support creating merge commits with the root commit as one of the parents",
	}
}

// IsCapabilityError reports whether err is a backend capability error.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// ValidateParents rejects parent-list shapes no supported backend can
// represent. Called by implementations on write, and by the rewrite engine
// up front so a plan fails before any mutation.
func ValidateParents(parents []models.CommitID) error {
	if len(parents) < 2 {
		return nil
	}
	for _, p := range parents {
		if p == models.RootCommitID {
			return ErrRootAsMergeParent()
		}
	}
	return nil
}

// mergeContentRefs is the shared trivial resolution rule: a side that equals
// the base yields the other side; anything else combines deterministically.
func mergeContentRefs(base, ours, theirs string) string {
	switch {
	case ours == theirs:
		return ours
	case base == ours:
		return theirs
	case base == theirs:
		return ours
	default:
		return models.MergedContentRef(base, ours, theirs)
	}
}

// rootCommit returns the canonical root commit record.
func rootCommit() *models.Commit {
	return &models.Commit{
		ID:       models.RootCommitID,
		ChangeID: models.RootChangeID,
	}
}
