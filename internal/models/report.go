package models

import "sort"

// AbandonedCommit is one enumerable entry of an AbandonReport.
type AbandonedCommit struct {
	ID       CommitID `json:"id"`
	ChangeID ChangeID `json:"change_id"`
	Message  string   `json:"message,omitempty"`
}

// AbandonReport enumerates everything an abandon operation changed. Nothing
// is silently swallowed: every abandoned, rewritten, deleted, or redirected
// entity shows up here.
type AbandonReport struct {
	Abandoned          []AbandonedCommit   `json:"abandoned,omitempty"`
	DeletedBookmarks   []string            `json:"deleted_bookmarks,omitempty"`
	RebasedDescendants int                 `json:"rebased_descendants"`
	NewWorkingCopy     map[string]CommitID `json:"new_working_copy,omitempty"`
}

// Empty reports whether the abandon was a no-op.
func (r *AbandonReport) Empty() bool {
	return len(r.Abandoned) == 0
}

// BookmarkChange classifies what an import did to one bookmark.
type BookmarkChange string

const (
	BookmarkCreated    BookmarkChange = "created"
	BookmarkUpdated    BookmarkChange = "updated"
	BookmarkDeleted    BookmarkChange = "deleted"
	BookmarkConflicted BookmarkChange = "conflicted"
)

// ImportReport records the per-bookmark outcome of a git import.
type ImportReport struct {
	Changes map[string]BookmarkChange `json:"changes,omitempty"`
}

// NewImportReport returns an empty report.
func NewImportReport() *ImportReport {
	return &ImportReport{Changes: make(map[string]BookmarkChange)}
}

// Names returns the changed bookmark names in sorted order.
func (r *ImportReport) Names() []string {
	names := make([]string, 0, len(r.Changes))
	for name := range r.Changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the import changed nothing.
func (r *ImportReport) Empty() bool {
	return len(r.Changes) == 0
}

// ExportResult records the outcome of writing one external ref.
type ExportResult struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason,omitempty"` // empty on success
}

// Failed reports whether this ref failed to export.
func (e ExportResult) Failed() bool {
	return e.Reason != ""
}

// ExportReport records the per-ref outcome of a git export. Failures never
// abort sibling refs; they are collected here.
type ExportReport struct {
	Results []ExportResult `json:"results,omitempty"`
}

// Failures returns the failed results in attempt order.
func (r *ExportReport) Failures() []ExportResult {
	var out []ExportResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}
