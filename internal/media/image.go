// Package media holds the clients for the side capabilities attached to a
// chat turn: portrait generation through ComfyUI and speech synthesis through
// GPT-SoVITS. Both are best-effort; a failure here never fails the turn.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hanseol/eternal-journey/backend/internal/config"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
)

// ImageClient queues portrait renders on a ComfyUI server and waits for them
// to finish, preferring the server's websocket event feed over history
// polling.
type ImageClient struct {
	apiURL     string
	baseTags   string
	workflow   string
	timeout    time.Duration
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewImageClient loads the workflow template from disk. The template carries
// $positive_prompt, $seed and $file_name placeholders that are substituted
// per request.
func NewImageClient(cfg config.Media, baseTags string) (*ImageClient, error) {
	raw, err := os.ReadFile(cfg.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow template: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("workflow template %s is not valid JSON", cfg.WorkflowPath)
	}

	return &ImageClient{
		apiURL:     strings.TrimRight(cfg.ComfyUIURL, "/"),
		baseTags:   baseTags,
		workflow:   string(raw),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// Generate queues one render and blocks until the server reports completion.
// The scene tags are appended to the fixed character tags.
func (c *ImageClient) Generate(ctx context.Context, sceneTags string) (chat.ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	seed := rand.Int63n(1 << 32)
	filename := "frieren_" + uuid.NewString()[:8]
	clientID := uuid.NewString()

	workflow := c.renderWorkflow(sceneTags, seed, filename)

	promptID, err := c.queuePrompt(ctx, clientID, workflow)
	if err != nil {
		return chat.ImageResult{}, err
	}
	logging.Info().Str("promptId", promptID).Int64("seed", seed).Msg("queued image render")

	if err := c.waitForCompletion(ctx, clientID, promptID); err != nil {
		return chat.ImageResult{}, err
	}

	return chat.ImageResult{Filename: filename, Seed: seed}, nil
}

// CheckConnection reports whether the ComfyUI server responds.
func (c *ImageClient) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Warn().Err(err).Msg("comfyui connection check failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *ImageClient) renderWorkflow(sceneTags string, seed int64, filename string) string {
	positive := c.baseTags
	if strings.TrimSpace(sceneTags) != "" {
		positive = c.baseTags + ", " + sceneTags
	}

	// Prompts end up inside JSON string values, so escape them first. The
	// seed placeholder is quoted in the template and replaced with a bare
	// number.
	escaped, _ := json.Marshal(positive)

	rendered := strings.ReplaceAll(c.workflow, `"$seed"`, strconv.FormatInt(seed, 10))
	rendered = strings.ReplaceAll(rendered, "$positive_prompt", strings.Trim(string(escaped), `"`))
	rendered = strings.ReplaceAll(rendered, "$file_name", filename)
	return rendered
}

func (c *ImageClient) queuePrompt(ctx context.Context, clientID, workflow string) (string, error) {
	body := fmt.Sprintf(`{"prompt": %s, "client_id": %q}`, workflow, clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/prompt", bytes.NewBufferString(body))
	if err != nil {
		return "", fmt.Errorf("failed to build prompt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to queue prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("comfyui returned status %d: %s", resp.StatusCode, payload)
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode prompt response: %w", err)
	}
	if result.PromptID == "" {
		return "", fmt.Errorf("comfyui returned no prompt_id")
	}
	return result.PromptID, nil
}

// waitForCompletion subscribes to the server's websocket event feed and falls
// back to polling the history endpoint when the socket is unavailable.
func (c *ImageClient) waitForCompletion(ctx context.Context, clientID, promptID string) error {
	if err := c.waitOnSocket(ctx, clientID, promptID); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("image render timed out: %w", ctx.Err())
		}
		logging.Warn().Err(err).Msg("websocket wait failed, polling history")
		return c.pollHistory(ctx, promptID)
	}
	return nil
}

// executingEvent is the subset of ComfyUI's websocket traffic we care about.
// A null node for our prompt id means execution finished.
type executingEvent struct {
	Type string `json:"type"`
	Data struct {
		Node     *string `json:"node"`
		PromptID string  `json:"prompt_id"`
	} `json:"data"`
}

func (c *ImageClient) waitOnSocket(ctx context.Context, clientID, promptID string) error {
	wsURL, err := url.Parse(c.apiURL)
	if err != nil {
		return fmt.Errorf("failed to parse server url: %w", err)
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = "clientId=" + url.QueryEscape(clientID)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial event feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("event feed read failed: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var event executingEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		if event.Type == "executing" && event.Data.PromptID == promptID && event.Data.Node == nil {
			return nil
		}
		if event.Type == "execution_error" && event.Data.PromptID == promptID {
			return fmt.Errorf("comfyui reported execution error for %s", promptID)
		}
	}
}

func (c *ImageClient) pollHistory(ctx context.Context, promptID string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("image render timed out: %w", ctx.Err())
		case <-ticker.C:
		}

		done, err := c.historyStatus(ctx, promptID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (c *ImageClient) historyStatus(ctx context.Context, promptID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/history/"+promptID, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build history request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("history returned status %d", resp.StatusCode)
	}

	var history map[string]struct {
		Status struct {
			StatusStr string `json:"status_str"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return false, fmt.Errorf("failed to decode history: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return false, nil
	}
	switch entry.Status.StatusStr {
	case "success":
		return true, nil
	case "error":
		return false, fmt.Errorf("comfyui render failed for %s", promptID)
	default:
		return false, nil
	}
}
