// Package memory assembles the bounded context window handed to the model on
// every turn: an optional digest of retired history, the verbatim trailing
// window, and the new user message.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
)

// Summarizer compacts retired conversation text into a single digest. It must
// be side-effect-free and retryable; failures are recovered locally.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary, conversationText string) (string, error)
}

// SessionStore is the slice of the registry the memory layer depends on.
type SessionStore interface {
	MessageCount(ctx context.Context, id string) (int, error)
	Messages(ctx context.Context, id string, limit int) ([]chat.Message, error)
	OldMessages(ctx context.Context, id string, keepRecent int) ([]chat.Message, error)
	Summary(ctx context.Context, id string) (string, error)
	UpdateSummary(ctx context.Context, id, summary string) error
	AppendTurn(ctx context.Context, userMsg, assistantMsg chat.Message) error
}

// Config bounds the context window.
type Config struct {
	// MaxRecent is the size of the verbatim trailing window.
	MaxRecent int
	// SummarizeThreshold is the total message count at which compaction runs.
	SummarizeThreshold int
	// SummaryTimeout bounds each summarizer invocation.
	SummaryTimeout time.Duration
}

// DefaultConfig mirrors the service defaults: a ten-message window with
// compaction from the twentieth message on.
func DefaultConfig() Config {
	return Config{
		MaxRecent:          10,
		SummarizeThreshold: 20,
		SummaryTimeout:     30 * time.Second,
	}
}

// Assembler builds the ordered message sequence for each model call and
// triggers compaction when the log crosses the configured threshold.
type Assembler struct {
	store      SessionStore
	summarizer Summarizer
	cfg        Config
}

// NewAssembler validates the window configuration and returns an assembler.
// A threshold below the window never retires anything new, so that shape is
// warned about rather than rejected.
func NewAssembler(store SessionStore, summarizer Summarizer, cfg Config) *Assembler {
	if cfg.MaxRecent < 1 {
		cfg.MaxRecent = 1
	}
	if cfg.SummarizeThreshold < 1 {
		cfg.SummarizeThreshold = 1
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 30 * time.Second
	}
	if cfg.SummarizeThreshold < cfg.MaxRecent {
		logging.Warn().
			Int("summarizeThreshold", cfg.SummarizeThreshold).
			Int("maxRecent", cfg.MaxRecent).
			Msg("summarize threshold below recent window; compaction will retire nothing new")
	}

	return &Assembler{store: store, summarizer: summarizer, cfg: cfg}
}

// BuildContext returns the exact sequence sent to the model: an optional
// system entry holding the summary, the trailing window oldest-first, then the
// new user message. Compaction failure falls back to the previous summary and
// never blocks the turn.
func (a *Assembler) BuildContext(ctx context.Context, sessionID, newMessage string) ([]*schema.Message, error) {
	count, err := a.store.MessageCount(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	if count >= a.cfg.SummarizeThreshold {
		if _, err := a.Compact(ctx, sessionID); err != nil {
			logging.Warn().Err(err).Str("session", sessionID).Msg("compaction failed, keeping previous summary")
		}
	}

	summary, err := a.store.Summary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}

	recent, err := a.store.Messages(ctx, sessionID, a.cfg.MaxRecent)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	messages := make([]*schema.Message, 0, len(recent)+2)
	if summary != "" {
		messages = append(messages, schema.SystemMessage("Summary of the earlier conversation:\n"+summary))
	}
	for _, msg := range recent {
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(newMessage))

	return messages, nil
}

// Compact summarizes everything older than the trailing window into a single
// authoritative digest and persists it, replacing the previous one. When the
// log still fits inside the window it is a no-op returning the existing
// summary. Two turns racing past the threshold may both compact; each
// recomputes from durable state, so the lost update is benign.
func (a *Assembler) Compact(ctx context.Context, sessionID string) (string, error) {
	existing, err := a.store.Summary(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load summary: %w", err)
	}
	if a.summarizer == nil {
		return existing, nil
	}

	old, err := a.store.OldMessages(ctx, sessionID, a.cfg.MaxRecent)
	if err != nil {
		return existing, fmt.Errorf("load old messages: %w", err)
	}
	if len(old) == 0 {
		return existing, nil
	}

	summaryCtx, cancel := context.WithTimeout(ctx, a.cfg.SummaryTimeout)
	defer cancel()

	summary, err := a.summarizer.Summarize(summaryCtx, existing, formatTranscript(old))
	if err != nil {
		return existing, fmt.Errorf("summarize: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return existing, fmt.Errorf("summarizer returned empty digest")
	}

	if err := a.store.UpdateSummary(ctx, sessionID, summary); err != nil {
		return existing, fmt.Errorf("persist summary: %w", err)
	}

	logging.Info().Str("session", sessionID).Int("retired", len(old)).Msg("compacted session history")
	return summary, nil
}

func formatTranscript(messages []chat.Message) string {
	var builder strings.Builder
	for i, msg := range messages {
		role := "User"
		if msg.Role == chat.RoleAssistant {
			role = "Assistant"
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(msg.Content)
		if i < len(messages)-1 {
			builder.WriteString("\n")
		}
	}
	return builder.String()
}
