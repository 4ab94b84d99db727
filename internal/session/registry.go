// Package session manages conversation identity lifecycle on top of the
// message log store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	"github.com/hanseol/eternal-journey/backend/internal/store"
)

// ErrSessionNotFound mirrors the store sentinel for callers that only import
// this package.
var ErrSessionNotFound = store.ErrSessionNotFound

// Registry owns session identity: creation, validation, listing, deletion and
// the summary metadata attached to each session. All state lives in the store;
// the registry holds no copies.
type Registry struct {
	store *store.Store
}

// NewRegistry wires a registry to its backing store.
func NewRegistry(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Create mints a new session with a fresh opaque id.
func (r *Registry) Create(ctx context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateSession(ctx, session.ID, session.CreatedAt); err != nil {
		return chat.Session{}, err
	}

	logging.Info().Str("session", session.ID).Msg("created new session")
	return session, nil
}

// Exists validates a caller-supplied session id.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	return r.store.SessionExists(ctx, id)
}

// Get returns the full session view or ErrSessionNotFound.
func (r *Registry) Get(ctx context.Context, id string) (chat.Session, error) {
	return r.store.GetSession(ctx, id)
}

// List returns all sessions, most recently active first.
func (r *Registry) List(ctx context.Context) ([]chat.Session, error) {
	return r.store.ListSessions(ctx)
}

// Delete removes a session together with its messages. The boolean reports
// whether a session existed to delete.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.store.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		logging.Info().Str("session", id).Msg("deleted session")
	}
	return deleted, nil
}

// ResolveOrCreate reuses a valid caller-supplied id and silently mints a new
// session otherwise. Stale or fabricated ids mean "start fresh", never an
// error.
func (r *Registry) ResolveOrCreate(ctx context.Context, id string) (string, error) {
	if id != "" {
		exists, err := r.store.SessionExists(ctx, id)
		if err != nil {
			return "", err
		}
		if exists {
			return id, nil
		}
		logging.Warn().Str("session", id).Msg("session not found, creating new session")
	}

	session, err := r.Create(ctx)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// UpdateSummary replaces the session's compacted-history digest.
func (r *Registry) UpdateSummary(ctx context.Context, id, summary string) error {
	if err := r.store.UpdateSummary(ctx, id, summary); err != nil {
		return err
	}
	logging.Info().Str("session", id).Msg("updated session summary")
	return nil
}

// Summary returns the current digest, empty until the first compaction.
func (r *Registry) Summary(ctx context.Context, id string) (string, error) {
	return r.store.Summary(ctx, id)
}

// Messages returns a session's log in chronological order, optionally limited
// to the trailing limit entries.
func (r *Registry) Messages(ctx context.Context, id string, limit int) ([]chat.Message, error) {
	return r.store.Messages(ctx, id, limit)
}

// MessageCount returns how many messages the session holds.
func (r *Registry) MessageCount(ctx context.Context, id string) (int, error) {
	return r.store.MessageCount(ctx, id)
}

// OldMessages returns the messages outside the trailing keepRecent window.
func (r *Registry) OldMessages(ctx context.Context, id string, keepRecent int) ([]chat.Message, error) {
	return r.store.OldMessages(ctx, id, keepRecent)
}

// AppendTurn persists one user/assistant pair atomically.
func (r *Registry) AppendTurn(ctx context.Context, userMsg, assistantMsg chat.Message) error {
	return r.store.AppendTurn(ctx, userMsg, assistantMsg)
}

// Append persists a single message. Most writes go through AppendTurn; this
// exists for callers that genuinely have only one half, such as imports.
func (r *Registry) Append(ctx context.Context, msg chat.Message) (int64, error) {
	return r.store.AppendMessage(ctx, msg)
}

// IsNotFound reports whether err is the registry's not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrSessionNotFound)
}
