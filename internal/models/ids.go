package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identifiers are hex-encoded SHA-256 digests. As strings they are totally
// ordered and usable as map keys; equality is structural.
const idHexLen = 64

// CommitID identifies one immutable commit by its content hash. It changes
// whenever the commit's content (including its parent list) changes.
type CommitID string

// ChangeID identifies the same logical change across rewrites of a commit.
// It is stable where CommitID is not.
type ChangeID string

// OperationID identifies one entry in the operation log by its content hash.
type OperationID string

// RootCommitID is the fixed identifier of the unique root commit. The root
// has no parents and is never rewritten.
var RootCommitID = CommitID(strings.Repeat("0", idHexLen))

// RootChangeID is the change identity of the root commit.
var RootChangeID = ChangeID(strings.Repeat("0", idHexLen))

// ShortID returns a shortened commit ID (first 8 characters).
func (id CommitID) ShortID() string { return shortHex(string(id)) }

// ShortID returns a shortened change ID (first 8 characters).
func (id ChangeID) ShortID() string { return shortHex(string(id)) }

// ShortID returns a shortened operation ID (first 8 characters).
func (id OperationID) ShortID() string { return shortHex(string(id)) }

func shortHex(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// NewChangeID derives a change identity from an arbitrary seed. Callers are
// responsible for seeding with something unique per logical change.
func NewChangeID(seed string) ChangeID {
	return ChangeID(hashFields("change", seed))
}

// hashFields produces a deterministic digest over pipe-joined fields.
func hashFields(fields ...string) string {
	h := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(h[:])
}

func commitIDsToStrings(ids []CommitID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
