package models

// EmptyContentRef is the content reference of a commit with no content of
// its own (the root commit, synthesized empty merge commits).
const EmptyContentRef = ""

// NewContentRef derives an opaque content reference from a seed. Content is
// never inspected by the core; references only need to be stable and
// comparable.
func NewContentRef(seed string) string {
	return hashFields("content", seed)
}

// MergedContentRef combines three content references into the reference of
// their three-way merge result. Deterministic, so re-running the same merge
// converges on the same reference.
func MergedContentRef(base, ours, theirs string) string {
	return hashFields("merged", base, ours, theirs)
}
