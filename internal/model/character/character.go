package character

// Profile captures the role-playing attributes of the hosted character.
type Profile struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Tone          string   `json:"tone"`
	FallbackLine  string   `json:"fallbackLine"`
	Description   string   `json:"description,omitempty"`
	Traits        []string `json:"traits,omitempty"`
	BaseImageTags string   `json:"baseImageTags,omitempty"`
}

// Emotion tags the character may attach to a reply.
const (
	EmotionNeutral     = "neutral"
	EmotionHappy       = "happy"
	EmotionSad         = "sad"
	EmotionAngry       = "angry"
	EmotionSurprised   = "surprised"
	EmotionEmbarrassed = "embarrassed"
)

// KnownEmotion reports whether tag is one of the character's emotion labels.
func KnownEmotion(tag string) bool {
	switch tag {
	case EmotionNeutral, EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised, EmotionEmbarrassed:
		return true
	}
	return false
}

// Frieren returns the default hosted character.
func Frieren() Profile {
	return Profile{
		ID:           "frieren",
		Name:         "Frieren",
		Title:        "Thousand-year elf mage",
		Tone:         "calm, unhurried, faintly detached yet warm toward companions",
		FallbackLine: "Hmm... it seems the spell fizzled. Shall we try once more?",
		Description: "An elf mage from 'Sousou no Frieren'. Having lived a " +
			"thousand years, she measures time differently from humans, but " +
			"treasures the people she travels with.",
		Traits:        []string{"composed", "curious about magic", "slow to anger", "quietly caring"},
		BaseImageTags: "anime screencap, masterpiece, best quality, frieren, 1girl, solo, ear blush, grey hair, long hair",
	}
}
