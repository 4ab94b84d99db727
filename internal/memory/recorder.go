package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
)

// Recorder persists completed turns. A turn is only recorded after the model
// call succeeded; the store appends both halves atomically so a user message
// is never observed without its assistant reply.
type Recorder struct {
	store SessionStore
}

// NewRecorder wires a recorder to the session store.
func NewRecorder(store SessionStore) *Recorder {
	return &Recorder{store: store}
}

// RecordTurn appends the user message and the assistant reply with its
// optional emotion annotations, bumping the session's recency metadata.
func (r *Recorder) RecordTurn(ctx context.Context, sessionID, userText string, result chat.Result) error {
	now := time.Now().UTC()

	userMsg := chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   userText,
		CreatedAt: now,
	}
	assistantMsg := chat.Message{
		SessionID:    sessionID,
		Role:         chat.RoleAssistant,
		Content:      result.Response,
		EmotionTag:   result.EmotionTag,
		IntensityTag: result.IntensityTag,
		CreatedAt:    now,
	}

	if err := r.store.AppendTurn(ctx, userMsg, assistantMsg); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}
