// Package history archives assistant transcripts locally so a conversation
// survives process restarts. The backend keeps its own conversation rows;
// this is a client-side mirror, never consulted for answers.
package history

import (
	"context"
	"database/sql"
	"time"
)

// Message is one archived transcript entry.
type Message struct {
	ID         string
	ProjectID  int64
	Role       string
	Content    string
	Confidence float64
	IsError    bool
	CreatedAt  time.Time
}

// Archive handles transcript persistence.
type Archive struct {
	db *sql.DB
}

// NewArchive builds an archive over an open history database.
func NewArchive(db *sql.DB) *Archive { return &Archive{db: db} }

// Append stores one transcript entry.
func (a *Archive) Append(ctx context.Context, m Message) error {
	_, err := a.db.ExecContext(ctx, `
	INSERT INTO messages(id, project_id, role, content, confidence, is_error, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?);
	`, m.ID, m.ProjectID, m.Role, m.Content, m.Confidence, boolInt(m.IsError), m.CreatedAt)
	return err
}

// Recent returns up to limit entries for a project, oldest first.
func (a *Archive) Recent(ctx context.Context, projectID int64, limit int) ([]Message, error) {
	rows, err := a.db.QueryContext(ctx, `
	SELECT id, project_id, role, content, confidence, is_error, created_at
	FROM (
	  SELECT * FROM messages WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	) ORDER BY created_at ASC, id ASC;
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var isErr int
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &m.Confidence, &isErr, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.IsError = isErr != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Replace swaps a project's archived transcript for the given entries in one
// transaction.
func (a *Archive) Replace(ctx context.Context, projectID int64, msgs []Message) error {
	return WithTx(a.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE project_id = ?`, projectID); err != nil {
			return err
		}
		for _, m := range msgs {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages(id, project_id, role, content, confidence, is_error, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?);
			`, m.ID, projectID, m.Role, m.Content, m.Confidence, boolInt(m.IsError), m.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes a project's archived transcript.
func (a *Archive) Clear(ctx context.Context, projectID int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM messages WHERE project_id = ?`, projectID)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
