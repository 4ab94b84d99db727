package ai

import (
	"fmt"
	"strings"

	"github.com/hanseol/eternal-journey/backend/internal/model/character"
)

// buildSystemPrompt renders the character's role-play instructions. The model
// is asked for a JSON object so the reply can carry emotion annotations.
func buildSystemPrompt(profile character.Profile) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "You are %s, %s.\n", profile.Name, profile.Title)
	fmt.Fprintf(&builder, "Personality: %s\n", profile.Description)
	fmt.Fprintf(&builder, "Tone: %s\n", profile.Tone)
	if len(profile.Traits) > 0 {
		fmt.Fprintf(&builder, "Traits: %s\n", strings.Join(profile.Traits, ", "))
	}

	builder.WriteString(`
Stay in character at all times. Answer the user's latest message as the
character would, and decide the character's current emotional state together
with its intensity.

Return ONLY a JSON object with these fields and nothing else:
{"response": "<the spoken reply, in character>",
 "emotion_tag": "<one of: neutral, happy, sad, angry, surprised, embarrassed>",
 "intensity_tag": "<emotion intensity from 0.0 to 1.0, as a string>"}`)

	return builder.String()
}

// summarizeSystemPrompt instructs the model to compact retired history.
const summarizeSystemPrompt = `You are a conversation summarization expert. Summarize the given conversation concisely.
Include in the summary:
- the main topics of the conversation
- important facts and information
- personal details the user mentioned (name, preferences, and so on)
- the emotional flow of the conversation

Write the summary in the conversation's language, within about 200 characters.`

// imagePromptSystem instructs the model to emit SDXL scene tags. The base
// character tags are appended by the image client, so only scene tags are
// requested here.
const imagePromptSystem = `You are an SDXL image prompt generator for an anime character portrait service.

Based on the conversation context and emotion, generate descriptive tags for image generation.
The base character tags are already included elsewhere.

Generate additional tags covering, where relevant: objects in the scene, the
environment, the action, the mood, camera position, clothing, facial
expression, color and lighting, indoor or outdoor, weather and time of day.

Output ONLY comma-separated tags. No explanations, no sentences. Maximum 15 tags.`

// fallbackImageTags maps an emotion to static scene tags used when the prompt
// generator is unavailable.
var fallbackImageTags = map[string]string{
	"neutral":     "calm expression, soft lighting, peaceful atmosphere",
	"happy":       "gentle smile, warm lighting, cheerful mood",
	"sad":         "melancholic expression, cool tones, soft shadows",
	"angry":       "intense expression, dramatic lighting, tense atmosphere",
	"surprised":   "wide eyes, bright lighting, dynamic pose",
	"embarrassed": "blush, averted gaze, soft pink tones",
}
