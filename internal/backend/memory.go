package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Memory is an in-memory backend for tests. It implements the same
// capability contract as SQLite, including the root-as-merge-parent
// restriction.
type Memory struct {
	mu      sync.RWMutex
	commits map[models.CommitID]*models.Commit

	// MergeCalls counts MergeContent invocations, for asserting that
	// restore-descendants consults the content capability.
	MergeCalls int
}

// NewMemory returns an empty in-memory backend holding only the root commit.
func NewMemory() *Memory {
	b := &Memory{commits: make(map[models.CommitID]*models.Commit)}
	root := rootCommit()
	b.commits[root.ID] = root
	return b
}

// ReadCommit retrieves a commit by ID.
func (b *Memory) ReadCommit(id models.CommitID) (*models.Commit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	commit, ok := b.commits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return commit, nil
}

// WriteCommit creates a commit, assigning its content-addressed ID.
func (b *Memory) WriteCommit(parents []models.CommitID, changeID models.ChangeID, contentRef, message, author string) (*models.Commit, error) {
	if err := ValidateParents(parents); err != nil {
		return nil, err
	}
	commit := &models.Commit{
		ID:         models.GenerateCommitID(changeID, parents, contentRef, message, author),
		ChangeID:   changeID,
		Parents:    parents,
		ContentRef: contentRef,
		Message:    message,
		Author:     author,
		Timestamp:  time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.commits[commit.ID]; ok {
		return existing, nil
	}
	b.commits[commit.ID] = commit
	return commit, nil
}

// ResolvePrefix returns every commit ID starting with the given prefix.
func (b *Memory) ResolvePrefix(prefix string) ([]models.CommitID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var ids []models.CommitID
	for id := range b.commits {
		if strings.HasPrefix(string(id), prefix) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MergeContent three-way merges opaque content references.
func (b *Memory) MergeContent(base, ours, theirs string) (string, error) {
	b.mu.Lock()
	b.MergeCalls++
	b.mu.Unlock()
	return mergeContentRefs(base, ours, theirs), nil
}

// Close is a no-op for the in-memory backend.
func (b *Memory) Close() error {
	return nil
}
