package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at boot.
type Config struct {
	Server Server
	Log    Log
	Store  Store
	Memory Memory
	AI     AI
	Media  Media
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServer()
	if err != nil {
		return nil, err
	}

	memory, err := loadMemory()
	if err != nil {
		return nil, err
	}

	ai, err := loadAI()
	if err != nil {
		return nil, err
	}

	media, err := loadMedia()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log: Log{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Pretty: os.Getenv("LOG_PRETTY") == "true",
		},
		Store:  Store{Path: getEnvOrDefault("DB_PATH", "./data/chat_history.db")},
		Memory: memory,
		AI:     ai,
		Media:  media,
	}, nil
}

// Server describes the HTTP listener.
type Server struct {
	Addr string
}

func loadServer() (Server, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return Server{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return Server{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return Server{Addr: ":" + port}, nil
}

// Log describes logger output.
type Log struct {
	Level  string
	Pretty bool
}

// Store locates the SQLite database file.
type Store struct {
	Path string
}

// Memory bounds the per-turn context window.
type Memory struct {
	MaxRecent          int
	SummarizeThreshold int
	SummaryTimeout     time.Duration
}

func loadMemory() (Memory, error) {
	maxRecent := 10
	if override, err := parseOptionalIntEnv("MAX_RECENT_MESSAGES"); err != nil {
		return Memory{}, err
	} else if override != nil {
		if *override < 1 {
			return Memory{}, fmt.Errorf("MAX_RECENT_MESSAGES must be at least 1, got %d", *override)
		}
		maxRecent = *override
	}

	threshold := 20
	if override, err := parseOptionalIntEnv("SUMMARIZE_THRESHOLD"); err != nil {
		return Memory{}, err
	} else if override != nil {
		if *override < 1 {
			return Memory{}, fmt.Errorf("SUMMARIZE_THRESHOLD must be at least 1, got %d", *override)
		}
		threshold = *override
	}

	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("SUMMARY_TIMEOUT"); err != nil {
		return Memory{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return Memory{
		MaxRecent:          maxRecent,
		SummarizeThreshold: threshold,
		SummaryTimeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// AI describes the chat model configuration.
type AI struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials were provided.
func (c AI) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AI) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("model credentials missing: provide ARK_API_KEY + MODEL_NAME or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAI() (AI, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AI{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AI{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AI{}, err
	}

	return AI{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("MODEL_NAME")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// Media describes the side-capability endpoints.
type Media struct {
	ComfyUIURL     string
	WorkflowPath   string
	TTSURL         string
	RefAudioDir    string
	AudioOutputDir string
	Timeout        time.Duration
	ImageEnabled   bool
	AudioEnabled   bool
}

func loadMedia() (Media, error) {
	timeoutSeconds := 120
	if override, err := parseOptionalIntEnv("MEDIA_TIMEOUT"); err != nil {
		return Media{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	comfyURL := strings.TrimSpace(os.Getenv("COMFYUI_API_URL"))
	ttsURL := strings.TrimSpace(os.Getenv("TTS_API_URL"))

	return Media{
		ComfyUIURL:     comfyURL,
		WorkflowPath:   getEnvOrDefault("COMFYUI_WORKFLOW_PATH", "./data/comfyui_workflow/sdxl_api.json"),
		TTSURL:         ttsURL,
		RefAudioDir:    getEnvOrDefault("TTS_REF_AUDIO_DIR", "./data/ref_audio"),
		AudioOutputDir: getEnvOrDefault("TTS_OUTPUT_DIR", "./data/generated_audio"),
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
		ImageEnabled:   comfyURL != "",
		AudioEnabled:   ttsURL != "",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
