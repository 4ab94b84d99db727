package memory_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/hanseol/eternal-journey/backend/internal/memory"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	"github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/internal/store"
)

// digestSummarizer is deterministic: the same inputs yield the same digest.
type digestSummarizer struct {
	calls int
}

func (s *digestSummarizer) Summarize(_ context.Context, _, conversationText string) (string, error) {
	s.calls++
	lines := strings.Count(conversationText, "\n") + 1
	return fmt.Sprintf("digest of %d lines", lines), nil
}

type failingSummarizer struct {
	calls int
}

func (s *failingSummarizer) Summarize(context.Context, string, string) (string, error) {
	s.calls++
	return "", errors.New("summarizer unavailable")
}

func newFixture(t *testing.T) *session.Registry {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chat_history.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return session.NewRegistry(s)
}

func appendTurns(t *testing.T, reg *session.Registry, sessionID string, messageTotal int) {
	t.Helper()
	ctx := context.Background()
	recorder := memory.NewRecorder(reg)
	for i := 0; i < messageTotal/2; i++ {
		err := recorder.RecordTurn(ctx, sessionID,
			fmt.Sprintf("question %d", i),
			chat.Result{Response: fmt.Sprintf("answer %d", i)},
		)
		if err != nil {
			t.Fatalf("RecordTurn err: %v", err)
		}
	}
	if messageTotal%2 == 1 {
		_, err := reg.Append(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleUser, Content: "odd question"})
		if err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}
}

func TestBuildContextShortHistoryNoSummary(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	appendTurns(t, reg, created.ID, 4)

	summarizer := &digestSummarizer{}
	asm := memory.NewAssembler(reg, summarizer, memory.Config{MaxRecent: 10, SummarizeThreshold: 20})

	messages, err := asm.BuildContext(ctx, created.ID, "what next?")
	if err != nil {
		t.Fatalf("BuildContext err: %v", err)
	}
	// 4 history + 1 new, no summary entry.
	if len(messages) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(messages))
	}
	if messages[0].Role == schema.System {
		t.Fatal("unexpected summary entry for short history")
	}
	last := messages[len(messages)-1]
	if last.Role != schema.User || last.Content != "what next?" {
		t.Fatalf("new message must come last, got %s %q", last.Role, last.Content)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer should not run, got %d calls", summarizer.calls)
	}
}

func TestBuildContextCompactsAboveThreshold(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	// 25 appended messages, window 10, threshold 20.
	appendTurns(t, reg, created.ID, 25)

	summarizer := &digestSummarizer{}
	asm := memory.NewAssembler(reg, summarizer, memory.Config{MaxRecent: 10, SummarizeThreshold: 20})

	messages, err := asm.BuildContext(ctx, created.ID, "and now?")
	if err != nil {
		t.Fatalf("BuildContext err: %v", err)
	}
	// 1 summary + 10 recent + 1 new.
	if len(messages) != 12 {
		t.Fatalf("expected 12 entries, got %d", len(messages))
	}
	if messages[0].Role != schema.System {
		t.Fatalf("first entry must be the summary, got %s", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "digest of") {
		t.Fatalf("summary entry missing digest: %q", messages[0].Content)
	}
	if summarizer.calls != 1 {
		t.Fatalf("expected one summarizer call, got %d", summarizer.calls)
	}

	summary, err := reg.Summary(ctx, created.ID)
	if err != nil {
		t.Fatalf("Summary err: %v", err)
	}
	if summary == "" {
		t.Fatal("summary not persisted")
	}
}

func TestCompactIdempotentWithoutNewMessages(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	appendTurns(t, reg, created.ID, 24)

	asm := memory.NewAssembler(reg, &digestSummarizer{}, memory.Config{MaxRecent: 10, SummarizeThreshold: 20})

	first, err := asm.Compact(ctx, created.ID)
	if err != nil {
		t.Fatalf("first Compact err: %v", err)
	}
	second, err := asm.Compact(ctx, created.ID)
	if err != nil {
		t.Fatalf("second Compact err: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("deterministic recompaction drifted: %q vs %q", first, second)
	}
}

func TestCompactNoOpInsideWindow(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	appendTurns(t, reg, created.ID, 6)

	summarizer := &digestSummarizer{}
	asm := memory.NewAssembler(reg, summarizer, memory.Config{MaxRecent: 10, SummarizeThreshold: 20})

	summary, err := asm.Compact(ctx, created.ID)
	if err != nil {
		t.Fatalf("Compact err: %v", err)
	}
	if summary != "" {
		t.Fatalf("expected unchanged empty summary, got %q", summary)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer must not run inside the window, got %d calls", summarizer.calls)
	}
}

func TestSummarizerFailureNeverSurfaces(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	appendTurns(t, reg, created.ID, 25)

	summarizer := &failingSummarizer{}
	asm := memory.NewAssembler(reg, summarizer, memory.Config{MaxRecent: 10, SummarizeThreshold: 20})

	for i := 0; i < 3; i++ {
		messages, err := asm.BuildContext(ctx, created.ID, "still there?")
		if err != nil {
			t.Fatalf("BuildContext attempt %d err: %v", i, err)
		}
		// 10 recent + 1 new; the prior (empty) summary is preserved.
		if len(messages) != 11 {
			t.Fatalf("attempt %d: expected 11 entries, got %d", i, len(messages))
		}
	}
	if summarizer.calls != 3 {
		t.Fatalf("expected 3 summarizer attempts, got %d", summarizer.calls)
	}

	summary, err := reg.Summary(ctx, created.ID)
	if err != nil {
		t.Fatalf("Summary err: %v", err)
	}
	if summary != "" {
		t.Fatalf("summary changed despite failures: %q", summary)
	}
}

func TestSummaryTimeoutTreatedAsFailure(t *testing.T) {
	reg := newFixture(t)
	ctx := context.Background()

	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	appendTurns(t, reg, created.ID, 22)

	slow := summarizeFunc(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})
	asm := memory.NewAssembler(reg, slow, memory.Config{
		MaxRecent:          10,
		SummarizeThreshold: 20,
		SummaryTimeout:     10 * time.Millisecond,
	})

	messages, err := asm.BuildContext(ctx, created.ID, "hello?")
	if err != nil {
		t.Fatalf("BuildContext err: %v", err)
	}
	if len(messages) != 11 {
		t.Fatalf("expected 11 entries, got %d", len(messages))
	}
}

type summarizeFunc func(ctx context.Context, priorSummary, conversationText string) (string, error)

func (f summarizeFunc) Summarize(ctx context.Context, priorSummary, conversationText string) (string, error) {
	return f(ctx, priorSummary, conversationText)
}
