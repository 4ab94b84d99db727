package chat

import "time"

// Session is a persistent conversation identity grouping an ordered
// sequence of messages.
type Session struct {
	ID            string     `json:"sessionId"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	MessageCount  int        `json:"messageCount"`
	Summary       string     `json:"summary,omitempty"`
}
