package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hanseol/eternal-journey/backend/internal/config"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/character"
)

// ImagePromptGenerator turns a reply and its emotion into SDXL scene tags.
type ImagePromptGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewImagePromptGenerator compiles the tag-generation chain.
func NewImagePromptGenerator(ctx context.Context, cfg config.AI) (*ImagePromptGenerator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create image prompt model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(imagePromptSystem),
		schema.UserMessage("Response: {response}\nEmotion: {emotion} (intensity {intensity})"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile image prompt chain: %w", err)
	}
	return &ImagePromptGenerator{chain: runnable}, nil
}

// Generate returns scene tags for the given reply. Any failure falls back to
// static per-emotion tags so image generation is never blocked on the model.
func (g *ImagePromptGenerator) Generate(ctx context.Context, responseText, emotionTag, intensityTag string) string {
	if g == nil || g.chain == nil {
		return FallbackSceneTags(emotionTag)
	}

	response, err := g.chain.Invoke(ctx, map[string]any{
		"response":  responseText,
		"emotion":   emotionTag,
		"intensity": intensityTag,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("image prompt generation failed, using fallback tags")
		return FallbackSceneTags(emotionTag)
	}

	tags := sanitizeTags(response.Content)
	if tags == "" {
		return FallbackSceneTags(emotionTag)
	}
	return tags
}

// FallbackSceneTags returns the static tags for an emotion, defaulting to the
// neutral set for unknown tags.
func FallbackSceneTags(emotionTag string) string {
	if tags, ok := fallbackImageTags[emotionTag]; ok {
		return tags
	}
	return fallbackImageTags[character.EmotionNeutral]
}

// sanitizeTags strips code fences and surrounding prose the model sometimes
// adds, keeping only the comma-separated tag list.
func sanitizeTags(content string) string {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	parts := strings.Split(cleaned, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" || strings.ContainsAny(tag, "\n{}") {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == 15 {
			break
		}
	}
	return strings.Join(tags, ", ")
}
