package provider

import (
	"strings"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/util"
)

// greetingPhrases are matched against the whole message, as a prefix or suffix, or followed
// by ! or ?.
var greetingPhrases = []string{
	"hi", "hello", "hey", "hiya", "howdy", "yo", "greetings",
	"good morning", "good afternoon", "good evening",
	"what's up", "whats up", "sup",
	"how are you", "how are you doing", "how's it going", "hows it going",
}

// maxGreetingWords bounds prefix and suffix matches so real questions that open with a
// greeting still reach the model.
const maxGreetingWords = 4

// GreetingTemplates are the pre-authored greeting replies.
var GreetingTemplates = []string{
	"Hi there! I'm Fundi, your Fundamenta guide. What would you like to work on today?",
	"Hello! It's great to see you. Are you curious about money, careers, cooking, or something else today?",
	"Hey! I'm doing great, thanks for asking. What can I help you learn today?",
	"Hi! Ready to build a new life skill? Tell me what's on your mind.",
}

// IsGreeting reports whether message is a simple greeting.
func IsGreeting(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	m = strings.ReplaceAll(m, "’", "'")
	if m == "" {
		return false
	}
	bare := strings.TrimRight(m, " !?.,")
	short := len(strings.Fields(m)) <= maxGreetingWords

	for _, g := range greetingPhrases {
		if bare == g {
			return true
		}
		if terminated(m, g+"!") || terminated(m, g+"?") {
			return true
		}
		if !short {
			continue
		}
		if strings.HasPrefix(bare, g+" ") || strings.HasPrefix(bare, g+",") {
			return true
		}
		if strings.HasSuffix(bare, " "+g) {
			return true
		}
	}
	return false
}

// terminated reports whether needle occurs in s starting at a word boundary.
func terminated(s, needle string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], needle)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 {
			return true
		}
		c := s[at-1]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\'') {
			return true
		}
		from = at + 1
	}
}

// GreetingResponse returns a randomly chosen greeting reply.
func GreetingResponse() models.StructuredResponse {
	return models.StructuredResponse{
		Response:  util.PickString(GreetingTemplates),
		Sentiment: "friendly",
		Suggestions: []models.Suggestion{{
			Text:        "Would you like me to take you to the Home section?",
			Path:        "/",
			Description: "See everything Fundamenta offers",
		}},
		FollowUpQuestions: []string{"What would you like to learn today?"},
		Personality:       "fundi",
	}
}
