package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanseol/eternal-journey/backend/internal/config"
	"github.com/hanseol/eternal-journey/backend/internal/handler"
	chatHandler "github.com/hanseol/eternal-journey/backend/internal/handler/chat"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/media"
	"github.com/hanseol/eternal-journey/backend/internal/memory"
	"github.com/hanseol/eternal-journey/backend/internal/model/character"
	"github.com/hanseol/eternal-journey/backend/internal/service/ai"
	sessionSvc "github.com/hanseol/eternal-journey/backend/internal/session"
	"github.com/hanseol/eternal-journey/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logging.Warn().Err(err).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	profile := character.Frieren()

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
	}
	defer s.Close()

	registry := sessionSvc.NewRegistry(s)
	recorder := memory.NewRecorder(registry)

	var (
		responder  chatHandler.Responder
		summarizer memory.Summarizer
		tagger     chatHandler.SceneTagger
		fallback   = ai.FallbackResultFor(profile)
	)
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, profile, cfg.AI)
		if err != nil {
			logging.Error().Err(err).Msg("failed to initialize model service, replies fall back to the static line")
		} else {
			responder = aiService
			logging.Info().Str("model", cfg.AI.Model).Msg("model service initialized")
		}

		if sum, err := ai.NewSummarizer(ctx, cfg.AI); err != nil {
			logging.Error().Err(err).Msg("failed to initialize summarizer, history compaction disabled")
		} else {
			summarizer = sum
		}

		if gen, err := ai.NewImagePromptGenerator(ctx, cfg.AI); err != nil {
			logging.Error().Err(err).Msg("failed to initialize image prompt generator, using static scene tags")
		} else {
			tagger = gen
		}
	} else {
		logging.Warn().Msg("model credentials not configured, replies use the static fallback line")
	}

	assembler := memory.NewAssembler(registry, summarizer, memory.Config{
		MaxRecent:          cfg.Memory.MaxRecent,
		SummarizeThreshold: cfg.Memory.SummarizeThreshold,
		SummaryTimeout:     cfg.Memory.SummaryTimeout,
	})

	fanout := buildFanout(ctx, cfg.Media, profile)

	router := handler.NewRouter(handler.Deps{
		Registry:  registry,
		Assembler: assembler,
		Recorder:  recorder,
		Responder: responder,
		Tagger:    tagger,
		Fanout:    fanout,
		Fallback:  fallback,
	})

	startServer(ctx, cfg.Server, router)
}

// buildFanout wires the optional media branches. A branch that fails to
// initialize or is unreachable is disabled rather than fatal.
func buildFanout(ctx context.Context, cfg config.Media, profile character.Profile) *media.Fanout {
	var (
		images media.ImageGenerator
		audio  media.AudioGenerator
	)

	if cfg.ImageEnabled {
		client, err := media.NewImageClient(cfg, profile.BaseImageTags)
		if err != nil {
			logging.Error().Err(err).Msg("failed to initialize image client, image generation disabled")
		} else {
			if !client.CheckConnection(ctx) {
				logging.Warn().Str("url", cfg.ComfyUIURL).Msg("comfyui not reachable at startup")
			}
			images = client
		}
	}

	if cfg.AudioEnabled {
		client, err := media.NewTTSClient(cfg)
		if err != nil {
			logging.Error().Err(err).Msg("failed to initialize tts client, audio generation disabled")
		} else {
			if !client.CheckConnection(ctx) {
				logging.Warn().Str("url", cfg.TTSURL).Msg("tts server not reachable at startup")
			}
			audio = client
		}
	}

	if images == nil && audio == nil {
		return nil
	}
	return media.NewFanout(images, audio)
}

func startServer(ctx context.Context, serverCfg config.Server, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logging.Info().Str("addr", serverCfg.Addr).Msg("eternal journey backend listening")
	if err := runServer(ctx, srv); err != nil {
		logging.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
