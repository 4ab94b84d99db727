package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanseol/eternal-journey/backend/internal/config"
	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
	"github.com/hanseol/eternal-journey/backend/internal/model/character"
)

// emotionRefNames selects the reference audio clip per emotion. Emotions
// without a dedicated clip fall back to the default voice.
var emotionRefNames = map[string]string{
	character.EmotionNeutral:     "default_jp",
	character.EmotionHappy:       "happy_jp",
	character.EmotionSad:         "sad_jp",
	character.EmotionAngry:       "default_jp",
	character.EmotionSurprised:   "default_jp",
	character.EmotionEmbarrassed: "default_jp",
}

// TTSClient synthesizes speech through a GPT-SoVITS server and writes the
// resulting WAV files to the output directory.
type TTSClient struct {
	apiURL      string
	refAudioDir string
	outputDir   string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewTTSClient creates the output directory if needed.
func NewTTSClient(cfg config.Media) (*TTSClient, error) {
	if err := os.MkdirAll(cfg.AudioOutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio output dir: %w", err)
	}

	return &TTSClient{
		apiURL:      strings.TrimRight(cfg.TTSURL, "/"),
		refAudioDir: cfg.RefAudioDir,
		outputDir:   cfg.AudioOutputDir,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{},
	}, nil
}

type ttsRequest struct {
	Text              string  `json:"text"`
	TextLang          string  `json:"text_lang"`
	RefAudioPath      string  `json:"ref_audio_path"`
	PromptText        string  `json:"prompt_text"`
	PromptLang        string  `json:"prompt_lang"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	Temperature       float64 `json:"temperature"`
	TextSplitMethod   string  `json:"text_split_method"`
	BatchSize         int     `json:"batch_size"`
	SpeedFactor       float64 `json:"speed_factor"`
	MediaType         string  `json:"media_type"`
	StreamingMode     bool    `json:"streaming_mode"`
	ParallelInfer     bool    `json:"parallel_infer"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	SampleSteps       int     `json:"sample_steps"`
	SuperSampling     bool    `json:"super_sampling"`
}

// Generate synthesizes text with the reference voice matching the emotion and
// writes the WAV to disk.
func (c *TTSClient) Generate(ctx context.Context, text, emotionTag string) (chat.AudioResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	refAudio, promptText := c.refAudioInfo(emotionTag)

	payload := ttsRequest{
		Text:              text,
		TextLang:          "ja",
		RefAudioPath:      refAudio,
		PromptText:        promptText,
		PromptLang:        "ja",
		TopK:              15,
		TopP:              1,
		Temperature:       1,
		TextSplitMethod:   "cut5",
		BatchSize:         1,
		SpeedFactor:       1.0,
		MediaType:         "wav",
		RepetitionPenalty: 1.35,
		SampleSteps:       32,
		ParallelInfer:     true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return chat.AudioResult{}, fmt.Errorf("failed to encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return chat.AudioResult{}, fmt.Errorf("failed to build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.AudioResult{}, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return chat.AudioResult{}, fmt.Errorf("tts returned status %d: %s", resp.StatusCode, detail)
	}

	filename := "frieren_audio_" + uuid.NewString()[:8]
	outputPath := filepath.Join(c.outputDir, filename+".wav")

	out, err := os.Create(outputPath)
	if err != nil {
		return chat.AudioResult{}, fmt.Errorf("failed to create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outputPath)
		return chat.AudioResult{}, fmt.Errorf("failed to write audio file: %w", err)
	}

	logging.Info().Str("file", outputPath).Str("emotion", emotionTag).Msg("audio generated")
	return chat.AudioResult{Filename: filename, Filepath: outputPath}, nil
}

// CheckConnection reports whether the GPT-SoVITS server responds. The server
// has no health endpoint, so any reply from /control counts, a 400 included.
func (c *TTSClient) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/control", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Warn().Err(err).Msg("tts connection check failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest
}

func (c *TTSClient) refAudioInfo(emotionTag string) (refAudio, promptText string) {
	refName, ok := emotionRefNames[emotionTag]
	if !ok {
		refName = "default_jp"
	}

	refAudio = filepath.Join(c.refAudioDir, refName+".wav")

	textPath := filepath.Join(c.refAudioDir, refName+".txt")
	if raw, err := os.ReadFile(textPath); err == nil {
		promptText = strings.TrimSpace(string(raw))
	}
	return refAudio, promptText
}
