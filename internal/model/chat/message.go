package chat

import "time"

// Roles stored in the message log. Only these two values are persisted;
// summary context entries are synthesized at assembly time and never written.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable entry of a session's append-only log. ID is the
// store-assigned sequence number; ordering within a session always follows ID,
// never the timestamp alone.
type Message struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"sessionId"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	EmotionTag   string    `json:"emotionTag,omitempty"`
	IntensityTag string    `json:"intensityTag,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
