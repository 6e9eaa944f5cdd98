package provider

import (
	"strings"

	"github.com/fundamenta/fundi/internal/models"
)

// fallbackTopic is a canned answer used when a remote call fails.
type fallbackTopic struct {
	Name     string
	Keywords []string
	Response string
	Path     string
	Text     string
}

var fallbackTopics = []fallbackTopic{
	{
		Name:     "home_buying",
		Keywords: []string{"mortgage", "home buying", "buying a home", "buy a house", "buying a house", "first home", "down payment"},
		Response: "Buying a home usually starts with three steps: check your credit score, save for a down payment " +
			"(often 3 to 20 percent of the price), and get pre-approved so you know your budget. " +
			"A good rule of thumb is keeping your monthly housing cost under about 30 percent of your income.",
		Path: "/finance/mortgage",
		Text: "Would you like me to take you to the Mortgage Calculator section?",
	},
	{
		Name:     "budgeting",
		Keywords: []string{"budget", "save money", "saving money", "spending", "expenses"},
		Response: "A simple way to start a budget is the 50/30/20 approach: about half of your take-home pay for needs, " +
			"30 percent for wants, and 20 percent for savings and debt payments. Tracking every expense for one month " +
			"shows you where your money really goes.",
		Path: "/finance/budget",
		Text: "Would you like me to take you to the Budget Planner section?",
	},
	{
		Name:     "resume",
		Keywords: []string{"resume", "cover letter", "curriculum vitae"},
		Response: "A strong resume is one page, starts with a short summary, and lists results rather than duties, " +
			"for example \"cut wait times by 20 percent\". Tailor the keywords to each job posting you apply for.",
		Path: "/career/resume",
		Text: "Would you like me to take you to the Resume Builder section?",
	},
}

// LocalFallback returns a canned topic answer for message, or the generic apology.
func LocalFallback(message string) models.StructuredResponse {
	lower := strings.ToLower(message)
	for _, topic := range fallbackTopics {
		for _, k := range topic.Keywords {
			if !strings.Contains(lower, k) {
				continue
			}
			return models.StructuredResponse{
				Response:  topic.Response,
				Sentiment: "helpful",
				Suggestions: []models.Suggestion{
					{Text: topic.Text, Path: topic.Path},
				},
				FollowUpQuestions: []string{},
				Personality:       "fundi",
			}
		}
	}
	return models.ApologyResponse()
}
