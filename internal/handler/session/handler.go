// Package session exposes session lifecycle management over HTTP.
package session

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	sessionSvc "github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/pkg/utils"
)

const defaultMessageLimit = 50

// Handler serves the session management endpoints.
type Handler struct {
	registry *sessionSvc.Registry
}

// New creates the session handler.
func New(registry *sessionSvc.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions", h.handleList)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Delete("/sessions/{sessionID}", h.handleDelete)
	r.Get("/sessions/{sessionID}/messages", h.handleMessages)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Create(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to create session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.List(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to list sessions")
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]chat.Session{"sessions": sessions})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.registry.Get(r.Context(), sessionID)
	if err != nil {
		if sessionSvc.IsNotFound(err) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		logging.Error().Err(err).Str("session", sessionID).Msg("failed to load session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := h.registry.Delete(r.Context(), sessionID)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("failed to delete session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if !deleted {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message":   "session deleted",
		"sessionId": sessionID,
	})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	exists, err := h.registry.Exists(r.Context(), sessionID)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("failed to check session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if !exists {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	messages, err := h.registry.Messages(r.Context(), sessionID, limit)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("failed to load messages")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}
