package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	sessionSvc "github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *sessionSvc.Registry) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := sessionSvc.NewRegistry(s)
	handler := New(registry)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, registry
}

func doRequest(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSession(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(t, r, http.MethodPost, "/sessions")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected a session id")
	}
	if session.MessageCount != 0 {
		t.Fatalf("new session should be empty, got %d messages", session.MessageCount)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(t, r, http.MethodGet, "/sessions/no-such-session")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeleteSessionThenGone(t *testing.T) {
	r, registry := setupRouter(t)

	session, err := registry.Create(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	resp := doRequest(t, r, http.MethodDelete, "/sessions/"+session.ID)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = doRequest(t, r, http.MethodDelete, "/sessions/"+session.ID)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("second delete should 404, got %d", resp.Code)
	}
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	r, registry := setupRouter(t)
	ctx := context.Background()

	first, err := registry.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	second, err := registry.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// activity on the older session moves it to the front
	now := time.Now().UTC()
	err = registry.AppendTurn(ctx,
		chat.Message{SessionID: first.ID, Role: chat.RoleUser, Content: "hi", CreatedAt: now},
		chat.Message{SessionID: first.ID, Role: chat.RoleAssistant, Content: "hello", CreatedAt: now},
	)
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}

	resp := doRequest(t, r, http.MethodGet, "/sessions")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Sessions []chat.Session `json:"sessions"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(body.Sessions))
	}
	if body.Sessions[0].ID != first.ID {
		t.Fatalf("active session should list first, got %s want %s (second=%s)", body.Sessions[0].ID, first.ID, second.ID)
	}
}

func TestSessionMessagesHonorsLimit(t *testing.T) {
	r, registry := setupRouter(t)
	ctx := context.Background()

	session, err := registry.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		err := registry.AppendTurn(ctx,
			chat.Message{SessionID: session.ID, Role: chat.RoleUser, Content: "q", CreatedAt: now},
			chat.Message{SessionID: session.ID, Role: chat.RoleAssistant, Content: "a", CreatedAt: now},
		)
		if err != nil {
			t.Fatalf("append turn: %v", err)
		}
	}

	resp := doRequest(t, r, http.MethodGet, "/sessions/"+session.ID+"/messages?limit=3")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		SessionID string         `json:"sessionId"`
		Messages  []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(body.Messages))
	}
	// the limit keeps the most recent tail, still in chronological order
	if body.Messages[len(body.Messages)-1].Role != chat.RoleAssistant {
		t.Fatalf("tail should end with the assistant reply, got %q", body.Messages[len(body.Messages)-1].Role)
	}
}

func TestSessionMessagesUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(t, r, http.MethodGet, "/sessions/ghost/messages")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSessionMessagesRejectsBadLimit(t *testing.T) {
	r, registry := setupRouter(t)

	session, err := registry.Create(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	resp := doRequest(t, r, http.MethodGet, "/sessions/"+session.ID+"/messages?limit=zero")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
