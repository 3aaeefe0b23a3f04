package models

import (
	"strings"
	"time"
)

// Commit is one immutable node of the commit graph. Commits are produced by
// the backend and read-only to the core: a rewrite always creates a new
// Commit with a new ID sharing the ChangeID.
type Commit struct {
	ID         CommitID   `json:"id"`
	ChangeID   ChangeID   `json:"change_id"`
	Parents    []CommitID `json:"parents,omitempty"`
	ContentRef string     `json:"content_ref,omitempty"`
	Message    string     `json:"message,omitempty"`
	Author     string     `json:"author,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// IsRoot returns true for the unique root commit.
func (c *Commit) IsRoot() bool {
	return c.ID == RootCommitID
}

// IsMerge returns true if this commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// ShortID returns a shortened commit ID (first 8 characters).
func (c *Commit) ShortID() string {
	return c.ID.ShortID()
}

// GenerateCommitID generates a content-addressable commit ID. The parent
// list is part of the hash, so substituting parents always yields a new ID
// while identical rewrites collapse to the same one.
func GenerateCommitID(changeID ChangeID, parents []CommitID, contentRef, message, author string) CommitID {
	data := hashFields(
		string(changeID),
		strings.Join(commitIDsToStrings(parents), ","),
		contentRef,
		message,
		author,
	)
	return CommitID(data)
}
