package models

import (
	"sort"
	"strings"
)

// View is one immutable snapshot of repository-visible state: the visible
// head set (maximal elements of the graph), the bookmark table, and the
// per-workspace working-copy pointers. Views are value types; mutate a Clone
// inside a transaction, never a committed View.
type View struct {
	Heads      []CommitID                 `json:"heads,omitempty"`
	Bookmarks  map[string]*BookmarkTarget `json:"bookmarks,omitempty"`
	Workspaces map[string]CommitID        `json:"workspaces,omitempty"`
}

// NewView returns an empty view.
func NewView() *View {
	return &View{
		Bookmarks:  make(map[string]*BookmarkTarget),
		Workspaces: make(map[string]CommitID),
	}
}

// Clone returns a deep copy of the view.
func (v *View) Clone() *View {
	c := NewView()
	c.Heads = append([]CommitID(nil), v.Heads...)
	for name, target := range v.Bookmarks {
		c.Bookmarks[name] = target.Clone()
	}
	for ws, id := range v.Workspaces {
		c.Workspaces[ws] = id
	}
	return c
}

// HasHead reports whether id is in the head set.
func (v *View) HasHead(id CommitID) bool {
	for _, h := range v.Heads {
		if h == id {
			return true
		}
	}
	return false
}

// AddHead inserts id into the head set, keeping it sorted and free of
// duplicates. Pruning non-maximal heads is the caller's job: it needs graph
// access the view does not have.
func (v *View) AddHead(id CommitID) {
	if id == "" || v.HasHead(id) {
		return
	}
	v.Heads = append(v.Heads, id)
	sort.Slice(v.Heads, func(i, j int) bool { return v.Heads[i] < v.Heads[j] })
}

// RemoveHead removes id from the head set.
func (v *View) RemoveHead(id CommitID) {
	for i, h := range v.Heads {
		if h == id {
			v.Heads = append(v.Heads[:i], v.Heads[i+1:]...)
			return
		}
	}
}

// Bookmark returns the target for name, or nil.
func (v *View) Bookmark(name string) *BookmarkTarget {
	return v.Bookmarks[name]
}

// SetBookmark stores target under name. A nil or fully absent target removes
// the entry.
func (v *View) SetBookmark(name string, target *BookmarkTarget) {
	if target == nil || target.IsAbsent() {
		delete(v.Bookmarks, name)
		return
	}
	if v.Bookmarks == nil {
		v.Bookmarks = make(map[string]*BookmarkTarget)
	}
	v.Bookmarks[name] = target
}

// BookmarkNames returns all bookmark names in sorted order.
func (v *View) BookmarkNames() []string {
	names := make([]string, 0, len(v.Bookmarks))
	for name := range v.Bookmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WorkspaceNames returns all workspace identifiers in sorted order.
func (v *View) WorkspaceNames() []string {
	names := make([]string, 0, len(v.Workspaces))
	for name := range v.Workspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContentHash computes a deterministic digest over the full view state. Two
// views with identical state hash identically regardless of construction
// order.
func (v *View) ContentHash() string {
	var sb strings.Builder
	heads := append([]CommitID(nil), v.Heads...)
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
	sb.WriteString(strings.Join(commitIDsToStrings(heads), ","))
	sb.WriteString("\n")
	for _, name := range v.BookmarkNames() {
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(v.Bookmarks[name].contentKey())
		sb.WriteString("\n")
	}
	for _, ws := range v.WorkspaceNames() {
		sb.WriteString(ws)
		sb.WriteString("@")
		sb.WriteString(string(v.Workspaces[ws]))
		sb.WriteString("\n")
	}
	return hashFields("view", sb.String())
}

// Equal compares two views structurally.
func (v *View) Equal(o *View) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.ContentHash() == o.ContentHash()
}
