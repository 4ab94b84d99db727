// Package chat exposes the conversation endpoints.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/media"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	sessionSvc "github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/pkg/utils"
)

// Responder produces the in-character reply for one turn.
type Responder interface {
	Generate(ctx context.Context, sessionID, userMessage string, contextMessages []*schema.Message) (chat.Result, error)
}

// ContextBuilder assembles the model context for a session.
type ContextBuilder interface {
	BuildContext(ctx context.Context, sessionID, newMessage string) ([]*schema.Message, error)
}

// TurnRecorder persists a completed turn.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID, userText string, result chat.Result) error
}

// SceneTagger turns a reply into image scene tags.
type SceneTagger interface {
	Generate(ctx context.Context, responseText, emotionTag, intensityTag string) string
}

// Handler serves the chat endpoints.
type Handler struct {
	registry  *sessionSvc.Registry
	assembler ContextBuilder
	recorder  TurnRecorder
	responder Responder
	tagger    SceneTagger
	fanout    *media.Fanout
	fallback  chat.Result
}

// New creates the chat handler. The responder may be nil when no model is
// configured; every turn then answers with the static fallback reply.
func New(registry *sessionSvc.Registry, assembler ContextBuilder, recorder TurnRecorder, responder Responder, tagger SceneTagger, fanout *media.Fanout, fallback chat.Result) *Handler {
	return &Handler{
		registry:  registry,
		assembler: assembler,
		recorder:  recorder,
		responder: responder,
		tagger:    tagger,
		fanout:    fanout,
		fallback:  fallback,
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/media", h.handleChatWithMedia)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	// Media toggles for /chat/media. Absent means enabled.
	EnableImage *bool `json:"enableImage"`
	EnableAudio *bool `json:"enableAudio"`
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

type chatResponse struct {
	SessionID    string `json:"sessionId"`
	Response     string `json:"response"`
	EmotionTag   string `json:"emotionTag,omitempty"`
	IntensityTag string `json:"intensityTag,omitempty"`
}

type chatMediaResponse struct {
	chatResponse
	Image *chat.ImageResult `json:"image"`
	Audio *chat.AudioResult `json:"audio"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	request, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	response, _, ok := h.runTurn(r.Context(), w, request)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, response)
}

func (h *Handler) handleChatWithMedia(w http.ResponseWriter, r *http.Request) {
	request, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	response, result, ok := h.runTurn(r.Context(), w, request)
	if !ok {
		return
	}

	opts := media.Options{
		Image: enabled(request.EnableImage),
		Audio: enabled(request.EnableAudio),
	}

	var attachments media.Attachments
	if h.fanout != nil {
		sceneTags := ""
		if h.tagger != nil && h.fanout.ImageEnabled() && opts.Image {
			sceneTags = h.tagger.Generate(r.Context(), result.Response, result.EmotionTag, result.IntensityTag)
		}
		attachments = h.fanout.Generate(r.Context(), result, sceneTags, opts)
	}

	utils.RespondJSON(w, http.StatusOK, chatMediaResponse{
		chatResponse: response,
		Image:        attachments.Image,
		Audio:        attachments.Audio,
	})
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var request chatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return chatRequest{}, false
	}
	if strings.TrimSpace(request.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return chatRequest{}, false
	}
	return request, true
}

// runTurn resolves the session, assembles context, generates the reply and
// records the turn. A model failure answers with the fallback line and skips
// recording; the session id in the response stays valid either way.
func (h *Handler) runTurn(ctx context.Context, w http.ResponseWriter, request chatRequest) (chatResponse, chat.Result, bool) {
	sessionID, err := h.registry.ResolveOrCreate(ctx, request.SessionID)
	if err != nil {
		logging.Error().Err(err).Msg("failed to resolve session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to resolve session")
		return chatResponse{}, chat.Result{}, false
	}

	contextMessages, err := h.assembler.BuildContext(ctx, sessionID, request.Message)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("failed to build context")
		utils.RespondError(w, http.StatusInternalServerError, "failed to build context")
		return chatResponse{}, chat.Result{}, false
	}

	result, generated := h.generate(ctx, sessionID, request.Message, contextMessages)
	if generated {
		if err := h.recorder.RecordTurn(ctx, sessionID, request.Message, result); err != nil {
			logging.Error().Err(err).Str("session", sessionID).Msg("failed to record turn")
		}
	}

	return chatResponse{
		SessionID:    sessionID,
		Response:     result.Response,
		EmotionTag:   result.EmotionTag,
		IntensityTag: result.IntensityTag,
	}, result, true
}

// generate returns the model reply, or the fallback line with generated=false
// when no model is configured or the call fails. Fallback turns are not
// recorded so the log only holds real exchanges.
func (h *Handler) generate(ctx context.Context, sessionID, message string, contextMessages []*schema.Message) (result chat.Result, generated bool) {
	if h.responder == nil {
		return h.fallback, false
	}

	result, err := h.responder.Generate(ctx, sessionID, message, contextMessages)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("generation failed, using fallback line")
		return h.fallback, false
	}
	return result, true
}
