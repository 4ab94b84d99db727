// Package emotion provides a keyword heuristic used when the model reply
// carries no usable emotion annotations.
package emotion

import (
	"fmt"
	"strings"
)

// Label is an emotion tag attached to assistant messages.
type Label string

const (
	Neutral     Label = "neutral"
	Happy       Label = "happy"
	Sad         Label = "sad"
	Angry       Label = "angry"
	Surprised   Label = "surprised"
	Embarrassed Label = "embarrassed"
)

// Decision is the inferred emotion with its intensity in [0, 1].
type Decision struct {
	Emotion   Label
	Intensity float32
	Score     int
}

// IntensityTag renders the intensity in the persisted annotation form.
func (d Decision) IntensityTag() string {
	return fmt.Sprintf("%.1f", d.Intensity)
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "wonderful", "thank you", "thanks", "love",
		"haha", "lol", "nice", "fun", "기뻐", "좋아", "고마워", "즐거",
	},
	Sad: {
		"sad", "lonely", "miss", "cry", "depressed", "unhappy", "sorrow",
		"hurt", "슬퍼", "외로", "그리워", "눈물", "우울",
	},
	Angry: {
		"angry", "furious", "mad", "annoyed", "hate", "rage", "unfair",
		"화나", "짜증", "분노", "싫어",
	},
	Surprised: {
		"what!", "really?", "no way", "wow", "unbelievable", "surprised",
		"suddenly", "놀라", "깜짝", "설마", "정말?",
	},
	Embarrassed: {
		"embarrassed", "awkward", "blush", "shy", "sorry about that",
		"부끄", "민망", "쑥스",
	},
}

var punctuationBoost = map[Label]int{
	Happy:     2,
	Surprised: 3,
}

// Analyze infers the emotion a reply should carry from the user utterance and
// the reply text. The reply wins when it scores; otherwise the user's mood is
// mapped to an appropriate response emotion.
func Analyze(userUtterance, replyUtterance string) Decision {
	userScore := scoreText(userUtterance)
	replyScore := scoreText(replyUtterance)

	final := replyScore
	if final.Score == 0 && userScore.Score > 0 {
		final = coerceFromUser(userScore)
	}

	if final.Score == 0 {
		return Decision{Emotion: Neutral, Intensity: 0.3}
	}

	intensity := 0.3 + float32(final.Score)*0.05
	if intensity > 1 {
		intensity = 1
	}

	return Decision{Emotion: final.Emotion, Intensity: intensity, Score: final.Score}
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 0 {
		scores[Surprised] += exclamations * punctuationBoost[Surprised]
		if exclamations == 1 {
			scores[Happy] += punctuationBoost[Happy]
		}
	}

	bestLabel := Neutral
	bestScore := 0
	for label, s := range scores {
		if s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}

	return Decision{Emotion: bestLabel, Score: bestScore}
}

// coerceFromUser maps the user's mood to the reply emotion when the reply
// itself is flat: sadness is met with quiet sympathy, not mirrored verbatim.
func coerceFromUser(user Decision) Decision {
	switch user.Emotion {
	case Angry:
		return Decision{Emotion: Neutral, Score: user.Score}
	case Surprised:
		return Decision{Emotion: Surprised, Score: user.Score}
	default:
		return user
	}
}
