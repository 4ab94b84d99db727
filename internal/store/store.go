// Package store owns the durable session and message records. Messages form
// an append-only log per session, totally ordered by their store-assigned id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
)

// ErrSessionNotFound is returned by operations that require the addressed
// session to exist.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions and messages in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, ensuring the parent directory
// exists, and applies the schema. Schema creation is idempotent, so concurrent
// processes racing through Open converge on the same tables.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("database initialized")
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			last_message_at TIMESTAMP,
			summary TEXT
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			emotion_tag TEXT,
			intensity_tag TEXT,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
		CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(session_id, created_at);
	`)
	return err
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, id string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		id, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionExists reports whether a session row exists for id.
func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return true, nil
}

// GetSession returns the session view including its message count.
func (s *Store) GetSession(ctx context.Context, id string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.created_at, s.last_message_at, s.summary, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON s.id = m.session_id
		WHERE s.id = ?
		GROUP BY s.id
	`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// ListSessions returns every session ordered by most recent activity. Sessions
// without messages rank by creation time; equal timestamps tie-break on id so
// the ordering is stable.
func (s *Store) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.last_message_at, s.summary, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON s.id = m.session_id
		GROUP BY s.id
		ORDER BY COALESCE(s.last_message_at, s.created_at) DESC, s.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]chat.Session, 0, 8)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and all of its messages in one transaction.
// Returns true only if the session row existed; both deletes commit together
// or not at all, so concurrent deletes leave exactly one winner.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return affected > 0, nil
}

// AppendMessage durably appends one message and bumps the session's
// last_message_at. The session must already exist; appends never create one.
func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	id, err := appendInTx(ctx, tx, msg)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return id, nil
}

// AppendTurn appends the user message and its paired assistant reply in a
// single transaction. A turn is all-or-nothing: no dangling user message
// without its reply can be observed.
func (s *Store) AppendTurn(ctx context.Context, userMsg, assistantMsg chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn: %w", err)
	}
	defer tx.Rollback()

	if _, err := appendInTx(ctx, tx, userMsg); err != nil {
		return err
	}
	if _, err := appendInTx(ctx, tx, assistantMsg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}
	return nil
}

func appendInTx(ctx context.Context, tx *sql.Tx, msg chat.Message) (int64, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, msg.SessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("check session: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, emotion_tag, intensity_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.SessionID, msg.Role, msg.Content, nullable(msg.EmotionTag), nullable(msg.IntensityTag), createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_message_at = ? WHERE id = ?`,
		createdAt, msg.SessionID,
	); err != nil {
		return 0, fmt.Errorf("update last_message_at: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message id: %w", err)
	}
	return id, nil
}

// Messages returns a session's messages in chronological order. With limit > 0
// only the last limit messages are returned, still oldest-first: the ending of
// the conversation, not its beginning.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT * FROM (
				SELECT id, session_id, role, content, emotion_tag, intensity_tag, created_at
				FROM messages
				WHERE session_id = ?
				ORDER BY id DESC
				LIMIT ?
			) ORDER BY id ASC
		`, sessionID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, session_id, role, content, emotion_tag, intensity_tag, created_at
			FROM messages
			WHERE session_id = ?
			ORDER BY id ASC
		`, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// OldMessages returns the messages preceding the trailing keepRecent window,
// oldest-first. When the log fits within the window there is nothing to
// retire and the result is empty.
func (s *Store) OldMessages(ctx context.Context, sessionID string, keepRecent int) ([]chat.Message, error) {
	total, err := s.MessageCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	oldCount := total - keepRecent
	if oldCount <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, emotion_tag, intensity_tag, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, sessionID, oldCount)
	if err != nil {
		return nil, fmt.Errorf("query old messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MessageCount returns the number of messages appended to a session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// UpdateSummary replaces the session's summary. The previous summary is
// overwritten, never appended to.
func (s *Store) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET summary = ? WHERE id = ?`, summary, sessionID,
	)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Summary returns the session's current summary, empty until the first
// compaction.
func (s *Store) Summary(ctx context.Context, sessionID string) (string, error) {
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM sessions WHERE id = ?`, sessionID,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query summary: %w", err)
	}
	return summary.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (chat.Session, error) {
	var session chat.Session
	var lastMessageAt sql.NullTime
	var summary sql.NullString

	if err := row.Scan(&session.ID, &session.CreatedAt, &lastMessageAt, &summary, &session.MessageCount); err != nil {
		return chat.Session{}, err
	}

	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		session.LastMessageAt = &t
	}
	session.Summary = summary.String
	return session, nil
}

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var msg chat.Message
		var emotion, intensity sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &emotion, &intensity, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.EmotionTag = emotion.String
		msg.IntensityTag = intensity.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
