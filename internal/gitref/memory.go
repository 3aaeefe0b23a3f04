package gitref

import (
	"strings"
	"sync"

	"github.com/kilupskalvis/ovc/internal/models"
)

// MemStore is an in-memory ref store for tests. It enforces the same naming
// rules as the bbolt implementation.
type MemStore struct {
	mu   sync.RWMutex
	refs map[string]models.CommitID
}

// NewMemStore returns an empty in-memory ref store.
func NewMemStore() *MemStore {
	return &MemStore{refs: make(map[string]models.CommitID)}
}

// List returns a coherent snapshot of every ref under the namespace.
func (s *MemStore) List(namespace string) (map[string]models.CommitID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.CommitID)
	for name, target := range s.refs {
		if strings.HasPrefix(name, namespace) {
			out[name] = target
		}
	}
	return out, nil
}

// Set creates or updates a ref, rejecting directory/file name conflicts.
func (s *MemStore) Set(name string, target models.CommitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := checkRefName(name, func(visit func(string) bool) {
		for ref := range s.refs {
			if visit(ref) {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	s.refs[name] = target
	return nil
}

// Delete removes a ref.
func (s *MemStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}
