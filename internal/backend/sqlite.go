package backend

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilupskalvis/ovc/internal/models"
)

// SQLite is the default durable backend. Commits are stored by ID with their
// parent list serialized as a JSON array.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the commit database at the given path and
// ensures the root commit exists.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open commit database: %w", err)
	}

	b := &SQLite{db: db}
	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commits (
		id TEXT PRIMARY KEY,
		change_id TEXT NOT NULL,
		parents JSON NOT NULL,
		content_ref TEXT,
		message TEXT,
		author TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_commits_change ON commits(change_id);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("create commit schema: %w", err)
	}
	return b.storeCommit(rootCommit())
}

// Close closes the database connection.
func (b *SQLite) Close() error {
	return b.db.Close()
}

// ReadCommit retrieves a commit by ID.
func (b *SQLite) ReadCommit(id models.CommitID) (*models.Commit, error) {
	row := b.db.QueryRow(`
		SELECT id, change_id, parents, content_ref, message, author, timestamp
		FROM commits WHERE id = ?`, string(id))
	return scanCommit(row)
}

// WriteCommit creates a commit, assigning its content-addressed ID. Writing
// an identical commit is a no-op returning the existing record.
func (b *SQLite) WriteCommit(parents []models.CommitID, changeID models.ChangeID, contentRef, message, author string) (*models.Commit, error) {
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
	if err := b.storeCommit(commit); err != nil {
		return nil, err
	}
	return commit, nil
}

func (b *SQLite) storeCommit(commit *models.Commit) error {
	parentsJSON, err := json.Marshal(commit.Parents)
	if err != nil {
		return fmt.Errorf("marshal parents: %w", err)
	}
	_, err = b.db.Exec(`
		INSERT OR IGNORE INTO commits (id, change_id, parents, content_ref, message, author, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(commit.ID), string(commit.ChangeID), string(parentsJSON),
		commit.ContentRef, commit.Message, commit.Author,
		commit.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store commit: %w", err)
	}
	return nil
}

// ResolvePrefix returns every commit ID starting with the given prefix.
func (b *SQLite) ResolvePrefix(prefix string) ([]models.CommitID, error) {
	rows, err := b.db.Query(`SELECT id FROM commits WHERE id LIKE ? ORDER BY id`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.CommitID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, models.CommitID(id))
	}
	return ids, rows.Err()
}

// MergeContent three-way merges opaque content references.
func (b *SQLite) MergeContent(base, ours, theirs string) (string, error) {
	return mergeContentRefs(base, ours, theirs), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommit(row rowScanner) (*models.Commit, error) {
	var commit models.Commit
	var id, changeID, parentsJSON, timestamp string
	var contentRef, message, author sql.NullString

	err := row.Scan(&id, &changeID, &parentsJSON, &contentRef, &message, &author, &timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	commit.ID = models.CommitID(id)
	commit.ChangeID = models.ChangeID(changeID)
	if err := json.Unmarshal([]byte(parentsJSON), &commit.Parents); err != nil {
		return nil, fmt.Errorf("unmarshal parents: %w", err)
	}
	commit.ContentRef = contentRef.String
	commit.Message = message.String
	commit.Author = author.String
	commit.Timestamp = parseTimestamp(timestamp)
	return &commit, nil
}

func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999+07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
