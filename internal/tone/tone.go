// Package tone provides Fundi's fixed whitelist of personality tags, validation,
// mutual-exclusion enforcement, emotion-driven adjustment, and the tone guide
// that the prompt builder injects into system prompts.
package tone

import (
	"strings"

	"github.com/fundamenta/fundi/internal/models"
)

// ---- Whitelist ----

// AllTags is the hard-coded set of safe personality tags.
var AllTags = map[string]bool{
	// Style
	"concise":        true,
	"detailed":       true,
	"formal":         true,
	"casual":         true,
	"no_emojis":      true,
	"emojis_ok":      true,
	"step_by_step":   true,
	"plain_language": true,
	// Stance
	"warm_supportive":      true,
	"neutral_professional": true,
	"direct_coach":         true,
	"gentle_coach":         true,
	"playful":              true,
	"calm_deescalating":    true,
	// Interaction
	"one_question_at_a_time": true,
	"celebrate_progress":     true,
}

// mutuallyExclusivePairs defines tags where at most one may be active.
// The tag listed first in a personality wins.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"formal", "casual"},
	{"direct_coach", "gentle_coach"},
	{"playful", "calm_deescalating"},
	{"playful", "neutral_professional"},
}

// Personality is the tone configuration Fundi speaks with.
type Personality struct {
	Name string   `json:"name" yaml:"name"`
	Tags []string `json:"tags" yaml:"tags"`
}

// DefaultPersonality is Fundi's everyday voice.
func DefaultPersonality() Personality {
	return Personality{
		Name: "fundi",
		Tags: []string{"warm_supportive", "casual", "concise", "plain_language", "emojis_ok", "celebrate_progress"},
	}
}

// emotionThreshold is the minimum emotion score that adjusts the personality.
const emotionThreshold = 0.5

// ---- Public API ----

// ValidateTags lowercases and strips unknown or duplicate tags, then enforces the
// mutual-exclusion pairs and the no_emojis override. Order is preserved.
func ValidateTags(tags []string) []string {
	seen := map[string]bool{}
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if !AllTags[t] || seen[t] {
			continue
		}
		if excluded(t, seen) {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}

	if seen["no_emojis"] && seen["emojis_ok"] {
		out := cleaned[:0]
		for _, t := range cleaned {
			if t != "emojis_ok" {
				out = append(out, t)
			}
		}
		cleaned = out
	}
	return cleaned
}

// excluded reports whether tag conflicts with a tag already accepted.
func excluded(tag string, accepted map[string]bool) bool {
	for _, pair := range mutuallyExclusivePairs {
		if pair[0] == tag && accepted[pair[1]] {
			return true
		}
		if pair[1] == tag && accepted[pair[0]] {
			return true
		}
	}
	return false
}

// ForEmotion adapts a personality to the user's detected emotion. Emotion-driven
// tags are placed first so they win any mutual-exclusion conflict.
func ForEmotion(p Personality, emotion models.EmotionResult) Personality {
	if emotion.EmotionScore < emotionThreshold {
		return Personality{Name: p.Name, Tags: ValidateTags(p.Tags)}
	}

	var lead []string
	switch strings.ToLower(emotion.PrimaryEmotion) {
	case "sadness", "fear", "nervousness", "grief", "disappointment":
		lead = []string{"gentle_coach", "warm_supportive", "one_question_at_a_time"}
	case "anger", "annoyance", "disgust":
		lead = []string{"calm_deescalating", "concise", "neutral_professional"}
	case "joy", "excitement", "optimism", "pride":
		lead = []string{"playful", "celebrate_progress"}
	case "confusion", "curiosity":
		lead = []string{"step_by_step", "plain_language"}
	default:
		return Personality{Name: p.Name, Tags: ValidateTags(p.Tags)}
	}

	tags := append(append([]string{}, lead...), p.Tags...)
	return Personality{Name: p.Name, Tags: ValidateTags(tags)}
}

// BuildToneGuide produces a compact instruction snippet for injection into system prompts.
// It returns an empty string when there are no active tags.
func BuildToneGuide(p Personality) string {
	tags := ValidateTags(p.Tags)
	if len(tags) == 0 {
		return ""
	}

	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}

	var b strings.Builder
	b.WriteString("\n<PERSONALITY>\nYou are Fundi, the Fundamenta assistant. Adapt your voice as follows:\n")

	// Style rules.
	if set["concise"] {
		b.WriteString("- Be concise: short sentences, minimal filler.\n")
	}
	if set["detailed"] {
		b.WriteString("- Be detailed: explain the why behind each step, but avoid rambling.\n")
	}
	if set["formal"] {
		b.WriteString("- Use formal diction and a professional register.\n")
	}
	if set["casual"] {
		b.WriteString("- Use casual, friendly language.\n")
	}
	if set["plain_language"] {
		b.WriteString("- Use plain language and define any jargon you must use.\n")
	}
	if set["step_by_step"] {
		b.WriteString("- Break instructions into small numbered steps.\n")
	}
	if set["no_emojis"] {
		b.WriteString("- Do NOT use emojis.\n")
	} else if set["emojis_ok"] {
		b.WriteString("- An occasional emoji is welcome where it fits.\n")
	}

	// Stance rules.
	hasStance := false
	if set["warm_supportive"] {
		b.WriteString("- Adopt a warm, supportive stance. Encourage the user.\n")
		hasStance = true
	}
	if set["neutral_professional"] {
		b.WriteString("- Keep a neutral, professional stance.\n")
		hasStance = true
	}
	if set["direct_coach"] {
		b.WriteString("- Be a direct coach: clear, action-oriented feedback.\n")
		hasStance = true
	}
	if set["gentle_coach"] {
		b.WriteString("- Be a gentle coach: patient, reassuring guidance.\n")
		hasStance = true
	}
	if set["playful"] {
		b.WriteString("- Be upbeat and a little playful.\n")
		hasStance = true
	}
	if set["calm_deescalating"] {
		b.WriteString("- Stay calm, acknowledge the frustration, and keep replies short.\n")
		hasStance = true
	}
	if !hasStance {
		b.WriteString("- Keep a neutral, professional stance.\n")
	}

	// Interaction rules.
	if set["one_question_at_a_time"] {
		b.WriteString("- Ask only one question at a time.\n")
	}
	if set["celebrate_progress"] {
		b.WriteString("- Acknowledge the user's progress when they share it.\n")
	}

	b.WriteString("- NEVER mirror hostility, sarcasm, insults, or unsafe language.\n")
	b.WriteString("</PERSONALITY>\n")

	return b.String()
}
