package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hanseol/eternal-journey/backend/internal/config"
)

// Summarizer condenses conversation history into a compact rolling summary.
// It satisfies the memory package's Summarizer interface.
type Summarizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewSummarizer compiles a summarization chain over a dedicated model client.
func NewSummarizer(ctx context.Context, cfg config.AI) (*Summarizer, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer model: %w", err)
	}
	return newSummarizerWithModel(ctx, chatModel)
}

func newSummarizerWithModel(ctx context.Context, chatModel model.ChatModel) (*Summarizer, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarizeSystemPrompt),
		schema.UserMessage("{conversation}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summarizer chain: %w", err)
	}
	return &Summarizer{chain: runnable}, nil
}

// Summarize folds the prior summary and the newly aged-out transcript into a
// single updated summary.
func (s *Summarizer) Summarize(ctx context.Context, priorSummary, conversationText string) (string, error) {
	input := conversationText
	if strings.TrimSpace(priorSummary) != "" {
		input = fmt.Sprintf("[Previous summary]\n%s\n\n[New conversation]\n%s", priorSummary, conversationText)
	}

	response, err := s.chain.Invoke(ctx, map[string]any{"conversation": input})
	if err != nil {
		return "", fmt.Errorf("failed to run summarizer chain: %w", err)
	}

	summary := strings.TrimSpace(response.Content)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty content")
	}
	return summary, nil
}
