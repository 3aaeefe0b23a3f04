// Package gitref models the external Git ref namespace that the sync layer
// reads and writes. The ref store is shared mutable state owned by someone
// else: writes made here are never rolled back by the operation log.
package gitref

import (
	"fmt"
	"strings"

	"github.com/kilupskalvis/ovc/internal/models"
)

// HeadsNamespace is the ref namespace tracked for local bookmarks.
const HeadsNamespace = "refs/heads/"

// RefStore enumerates and mutates refs in the external store. List must
// return one coherent snapshot per call; Set and Delete report per-ref
// success or failure.
type RefStore interface {
	// List returns every ref under the namespace prefix with its target.
	List(namespace string) (map[string]models.CommitID, error)
	// Set creates or updates a ref.
	Set(name string, target models.CommitID) error
	// Delete removes a ref. Deleting a missing ref is a no-op.
	Delete(name string) error
	Close() error
}

// NameConflictError reports a ref name that collides with an existing ref
// the way Git forbids: a ref cannot be a directory prefix of another.
type NameConflictError struct {
	Name     string
	Existing string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("failed to set %s: conflicts with existing ref %s", e.Name, e.Existing)
}

// checkRefName validates name against the existing ref set.
func checkRefName(name string, existing func(func(string) bool)) error {
	var conflict string
	existing(func(ref string) bool {
		if ref == name {
			return false // overwrite is fine
		}
		if strings.HasPrefix(ref, name+"/") || strings.HasPrefix(name, ref+"/") {
			conflict = ref
			return true
		}
		return false
	})
	if conflict != "" {
		return &NameConflictError{Name: name, Existing: conflict}
	}
	return nil
}
