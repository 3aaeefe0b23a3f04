package models

import (
	"strings"
	"time"
)

// Operation is one immutable, content-addressed entry in the operation log.
// It wraps a View snapshot plus provenance metadata. Operations form their
// own append-only DAG: more than one parent only at a deliberate merge of
// concurrent operation heads.
type Operation struct {
	ID          OperationID   `json:"id"`
	Parents     []OperationID `json:"parents,omitempty"`
	View        *View         `json:"view"`
	Description string        `json:"description"`
	Actor       string        `json:"actor,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ShortID returns a shortened operation ID (first 8 characters).
func (op *Operation) ShortID() string {
	return op.ID.ShortID()
}

// IsRoot returns true for the initial operation of a repository.
func (op *Operation) IsRoot() bool {
	return len(op.Parents) == 0
}

// GenerateOperationID hashes the full operation content, so identical
// operations produced from identical states collapse to the same identity.
func GenerateOperationID(parents []OperationID, view *View, description, actor string, ts time.Time) OperationID {
	parentStrs := make([]string, len(parents))
	for i, p := range parents {
		parentStrs[i] = string(p)
	}
	data := hashFields(
		"operation",
		strings.Join(parentStrs, ","),
		view.ContentHash(),
		description,
		actor,
		ts.UTC().Format(time.RFC3339Nano),
	)
	return OperationID(data)
}
