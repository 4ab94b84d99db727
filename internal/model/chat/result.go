package chat

// Result is the structured reply of one model call.
type Result struct {
	Response     string `json:"response"`
	EmotionTag   string `json:"emotionTag,omitempty"`
	IntensityTag string `json:"intensityTag,omitempty"`
}

// ImageResult describes a generated scene image.
type ImageResult struct {
	Filename string `json:"filename"`
	Seed     int64  `json:"seed"`
}

// AudioResult describes a generated speech clip.
type AudioResult struct {
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
}
