package models

import (
	"sort"
	"strings"
)

// BookmarkTarget records the local target of a named bookmark plus its
// per-remote tracking memory. An absent local target with surviving remote
// memory means the bookmark was deleted locally but later divergence can
// still be detected.
type BookmarkTarget struct {
	Local CommitID `json:"local,omitempty"`
	// Conflict holds every candidate target when the bookmark is conflicted
	// (moved on both sides of a merge, or diverged from its remote). Local
	// carries the first candidate so the bookmark stays resolvable.
	Conflict []CommitID          `json:"conflict,omitempty"`
	Remotes  map[string]CommitID `json:"remotes,omitempty"`
}

// NewBookmarkTarget returns a bookmark pointing at the given local commit.
func NewBookmarkTarget(local CommitID) *BookmarkTarget {
	return &BookmarkTarget{Local: local}
}

// IsConflicted returns true if the bookmark has more than one candidate
// target. Divergence is sticky until explicitly resolved.
func (b *BookmarkTarget) IsConflicted() bool {
	return len(b.Conflict) > 1
}

// HasLocal returns true if the bookmark exists locally.
func (b *BookmarkTarget) HasLocal() bool {
	return b.Local != "" || len(b.Conflict) > 0
}

// IsAbsent returns true if neither a local target nor remote memory remains.
func (b *BookmarkTarget) IsAbsent() bool {
	return !b.HasLocal() && len(b.Remotes) == 0
}

// SetConflict marks the bookmark conflicted between the given candidates.
// A single distinct candidate resolves the conflict instead.
func (b *BookmarkTarget) SetConflict(candidates []CommitID) {
	uniq := make([]CommitID, 0, len(candidates))
	seen := make(map[CommitID]bool)
	for _, id := range candidates {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	switch len(uniq) {
	case 0:
		b.Local = ""
		b.Conflict = nil
	case 1:
		b.Local = uniq[0]
		b.Conflict = nil
	default:
		b.Local = uniq[0]
		b.Conflict = uniq
	}
}

// Clone returns a deep copy of the target.
func (b *BookmarkTarget) Clone() *BookmarkTarget {
	c := &BookmarkTarget{Local: b.Local}
	if len(b.Conflict) > 0 {
		c.Conflict = append([]CommitID(nil), b.Conflict...)
	}
	if len(b.Remotes) > 0 {
		c.Remotes = make(map[string]CommitID, len(b.Remotes))
		for k, v := range b.Remotes {
			c.Remotes[k] = v
		}
	}
	return c
}

// RemoteTarget returns the tracking memory for a remote, or "" if untracked.
func (b *BookmarkTarget) RemoteTarget(remote string) CommitID {
	if b.Remotes == nil {
		return ""
	}
	return b.Remotes[remote]
}

// SetRemoteTarget updates the tracking memory for a remote. An empty target
// removes the memory.
func (b *BookmarkTarget) SetRemoteTarget(remote string, target CommitID) {
	if target == "" {
		delete(b.Remotes, remote)
		if len(b.Remotes) == 0 {
			b.Remotes = nil
		}
		return
	}
	if b.Remotes == nil {
		b.Remotes = make(map[string]CommitID)
	}
	b.Remotes[remote] = target
}

// DisplayName renders the bookmark name, with the "??" suffix for a
// conflicted bookmark.
func (b *BookmarkTarget) DisplayName(name string) string {
	if b.IsConflicted() {
		return name + "??"
	}
	return name
}

// contentKey returns a canonical string for hashing and equality checks.
func (b *BookmarkTarget) contentKey() string {
	if b == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(string(b.Local))
	sb.WriteString(";")
	sb.WriteString(strings.Join(commitIDsToStrings(b.Conflict), ","))
	sb.WriteString(";")
	remotes := make([]string, 0, len(b.Remotes))
	for name := range b.Remotes {
		remotes = append(remotes, name)
	}
	sort.Strings(remotes)
	for _, name := range remotes {
		sb.WriteString(name)
		sb.WriteString(":")
		sb.WriteString(string(b.Remotes[name]))
		sb.WriteString(",")
	}
	return sb.String()
}

// TargetsEqual compares two bookmark targets structurally, treating nil as
// an absent bookmark.
func TargetsEqual(a, b *BookmarkTarget) bool {
	return a.contentKey() == b.contentKey()
}
