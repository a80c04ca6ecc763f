package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// SessionRepository handles chat session persistence. A session is stored
// as one row plus its full message sequence; an update replaces the
// sequence transactionally so the stored record always mirrors the
// in-memory transcript.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a session for the first time and assigns its ID.
func (r *SessionRepository) Create(session *domain.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, title, updated_at)
		VALUES (?, ?, ?)
	`, session.ID, session.Title, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := insertMessages(tx, session); err != nil {
		return err
	}

	return tx.Commit()
}

// Update replaces a stored session's title, timestamp and full message
// sequence.
func (r *SessionRepository) Update(session *domain.ChatSession) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?
	`, session.Title, session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if err := insertMessages(tx, session); err != nil {
		return err
	}

	return tx.Commit()
}

func insertMessages(tx *sql.Tx, session *domain.ChatSession) error {
	for i, msg := range session.Messages {
		_, err := tx.Exec(`
			INSERT INTO messages (id, session_id, position, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), session.ID, i, string(msg.Role), msg.Content, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a session with its messages. Returns (nil, nil) when the
// session does not exist.
func (r *SessionRepository) Get(id string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{}

	err := r.db.QueryRow(`
		SELECT id, title, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.Title, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		session.Messages = append(session.Messages, msg)
	}

	return session, rows.Err()
}

// List returns all sessions, most recently updated first.
func (r *SessionRepository) List() ([]*domain.SessionSummary, error) {
	rows, err := r.db.Query(`
		SELECT id, title, updated_at FROM sessions
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.SessionSummary
	for rows.Next() {
		s := &domain.SessionSummary{}
		if err := rows.Scan(&s.ID, &s.Title, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Delete removes a session and, via cascade, its messages.
func (r *SessionRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
