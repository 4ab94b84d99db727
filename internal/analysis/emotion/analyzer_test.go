package emotion

import "testing"

func TestAnalyzeSadReply(t *testing.T) {
	decision := Analyze("I miss my grandmother", "That must hurt. I am sorry.")
	if decision.Emotion != Sad {
		t.Fatalf("expected sad emotion, got %s", decision.Emotion)
	}
	if decision.Intensity <= 0 || decision.Intensity > 1 {
		t.Fatalf("intensity out of range: %f", decision.Intensity)
	}
}

func TestAnalyzeSurprisedExclamations(t *testing.T) {
	decision := Analyze("We found the grimoire!!!", "No way, truly?")
	if decision.Emotion != Surprised {
		t.Fatalf("expected surprised emotion, got %s", decision.Emotion)
	}
}

func TestAnalyzeNeutralFallback(t *testing.T) {
	decision := Analyze("what time is it", "it is past noon")
	if decision.Emotion != Neutral {
		t.Fatalf("expected neutral emotion, got %s", decision.Emotion)
	}
	if decision.IntensityTag() != "0.3" {
		t.Fatalf("unexpected intensity tag: %s", decision.IntensityTag())
	}
}

func TestAnalyzeAngryUserMetCalmly(t *testing.T) {
	decision := Analyze("this is so unfair, I hate it", "Let us look at it slowly.")
	if decision.Emotion != Neutral {
		t.Fatalf("expected calm reply emotion, got %s", decision.Emotion)
	}
}
