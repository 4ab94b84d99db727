// Package handler assembles the HTTP surface.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/hanseol/eternal-journey/backend/internal/handler/chat"
	sessionHandler "github.com/hanseol/eternal-journey/backend/internal/handler/session"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/media"
	middlewarePkg "github.com/hanseol/eternal-journey/backend/internal/middleware"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	sessionSvc "github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/pkg/utils"
)

// Deps carries everything the router wires together. Responder, tagger and
// fanout are optional; the chat endpoints degrade gracefully without them.
type Deps struct {
	Registry  *sessionSvc.Registry
	Assembler chatHandler.ContextBuilder
	Recorder  chatHandler.TurnRecorder
	Responder chatHandler.Responder
	Tagger    chatHandler.SceneTagger
	Fanout    *media.Fanout
	Fallback  chat.Result
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"message": "Eternal Journey AI Backend is running",
			"version": "0.2.0",
		})
	})

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(deps.Registry).RegisterRoutes(api)
		chatHandler.New(deps.Registry, deps.Assembler, deps.Recorder, deps.Responder, deps.Tagger, deps.Fanout, deps.Fallback).RegisterRoutes(api)
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
