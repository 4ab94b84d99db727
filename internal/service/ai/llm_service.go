// Package ai hosts every capability served by the chat model: in-character
// reply generation, history summarization and scene-tag generation.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hanseol/eternal-journey/backend/internal/analysis/emotion"
	"github.com/hanseol/eternal-journey/backend/internal/config"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	"github.com/hanseol/eternal-journey/backend/internal/model/character"
)

// Service encapsulates the chat model and its compiled chains.
type Service struct {
	chatModel model.ChatModel
	profile   character.Profile
	chatChain compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the model client from configuration and compiles the
// reply chain.
func NewService(ctx context.Context, profile character.Profile, cfg config.AI) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("context", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		profile:   profile,
		chatChain: runnable,
	}, nil
}

// Profile returns the hosted character.
func (s *Service) Profile() character.Profile {
	return s.profile
}

// FallbackResultFor is the static in-character reply substituted when the
// model is unavailable or a call fails. The caller still returns a valid
// session id alongside it.
func FallbackResultFor(profile character.Profile) chat.Result {
	return chat.Result{
		Response:     profile.FallbackLine,
		EmotionTag:   character.EmotionNeutral,
		IntensityTag: "0.1",
	}
}

// Generate runs one model call over the assembled context and parses the
// structured reply. Missing or malformed emotion annotations fall back to the
// keyword heuristic; a malformed body falls back to the raw content.
func (s *Service) Generate(ctx context.Context, sessionID, userMessage string, contextMessages []*schema.Message) (chat.Result, error) {
	response, err := s.chatChain.Invoke(ctx, map[string]any{
		"system":  buildSystemPrompt(s.profile),
		"context": contextMessages,
	})
	if err != nil {
		return chat.Result{}, fmt.Errorf("failed to run chat chain: %w", err)
	}

	result := s.parseResult(userMessage, response.Content)
	logging.Info().
		Str("session", sessionID).
		Str("emotion", result.EmotionTag).
		Int("length", len(result.Response)).
		Msg("generated response")
	return result, nil
}

type structuredReply struct {
	Response     string `json:"response"`
	EmotionTag   string `json:"emotion_tag"`
	IntensityTag string `json:"intensity_tag"`
}

func (s *Service) parseResult(userMessage, content string) chat.Result {
	reply, err := parseJSONObject[structuredReply](content)
	if err != nil || strings.TrimSpace(reply.Response) == "" {
		logging.Warn().Err(err).Msg("model returned unstructured reply, using raw content")
		decision := emotion.Analyze(userMessage, content)
		return chat.Result{
			Response:     strings.TrimSpace(content),
			EmotionTag:   string(decision.Emotion),
			IntensityTag: decision.IntensityTag(),
		}
	}

	result := chat.Result{
		Response:     strings.TrimSpace(reply.Response),
		EmotionTag:   strings.ToLower(strings.TrimSpace(reply.EmotionTag)),
		IntensityTag: strings.TrimSpace(reply.IntensityTag),
	}

	if !character.KnownEmotion(result.EmotionTag) || !validIntensity(result.IntensityTag) {
		decision := emotion.Analyze(userMessage, result.Response)
		result.EmotionTag = string(decision.Emotion)
		result.IntensityTag = decision.IntensityTag()
	}

	return result
}

func validIntensity(tag string) bool {
	if tag == "" {
		return false
	}
	val, err := strconv.ParseFloat(tag, 32)
	return err == nil && val >= 0 && val <= 1
}

// parseJSONObject extracts the first JSON object embedded in model output.
// Models occasionally wrap the object in prose or code fences.
func parseJSONObject[T any](content string) (*T, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := new(T)
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}
