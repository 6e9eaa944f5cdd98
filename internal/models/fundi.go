package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValidRole checks if the given role is supported.
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is a single turn of a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StoredMessage is a Message persisted for a conversation.
type StoredMessage struct {
	ConversationID int64     `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Category is a Fundi topic category.
type Category string

const (
	CategoryFinance         Category = "finance"
	CategoryCareer          Category = "career"
	CategoryWellness        Category = "wellness"
	CategoryLearning        Category = "learning"
	CategoryEmergency       Category = "emergency"
	CategoryCooking         Category = "cooking"
	CategoryFitness         Category = "fitness"
	CategoryHomeMaintenance Category = "homeMaintenance"
	CategoryGeneral         Category = "general"
)

// AllCategories lists every category in label order, general last.
var AllCategories = []Category{
	CategoryFinance,
	CategoryCareer,
	CategoryWellness,
	CategoryLearning,
	CategoryEmergency,
	CategoryCooking,
	CategoryFitness,
	CategoryHomeMaintenance,
	CategoryGeneral,
}

// IsValidCategory checks if the given category is one of AllCategories.
func IsValidCategory(c Category) bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryResult is the outcome of classifying one message.
type CategoryResult struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// DefaultCategoryResult is returned when classification cannot be performed.
func DefaultCategoryResult() CategoryResult {
	return CategoryResult{Category: CategoryGeneral, Confidence: 0.5}
}

// EmotionScore is one scored emotion label.
type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// EmotionResult is the outcome of analyzing the emotional tone of a message.
type EmotionResult struct {
	PrimaryEmotion string         `json:"primaryEmotion"`
	EmotionScore   float64        `json:"emotionScore"`
	Emotions       []EmotionScore `json:"emotions,omitempty"`
}

// NeutralEmotion is returned when emotion analysis cannot be performed.
func NeutralEmotion() EmotionResult {
	return EmotionResult{PrimaryEmotion: "neutral", EmotionScore: 0.5}
}

// Suggestion is a follow-up the UI renders as a clickable chip.
type Suggestion struct {
	Text        string      `json:"text"`
	Path        string      `json:"path,omitempty"`
	Description string      `json:"description,omitempty"`
	Action      interface{} `json:"action,omitempty"`
}

// ActionType enumerates the client actions Fundi may propose.
type ActionType string

const (
	// ActionNavigate asks the client to offer navigation to a route.
	ActionNavigate ActionType = "navigate"
)

// Action is a client-side action derived from a validated suggestion.
// RequiresConfirmation is always true: Fundi never navigates on its own.
type Action struct {
	Type                 ActionType `json:"type"`
	Path                 string     `json:"path"`
	Label                string     `json:"label"`
	RequiresConfirmation bool       `json:"requiresConfirmation"`
}

// CrisisResource is a hotline or service shown with a crisis response.
type CrisisResource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Description string `json:"description,omitempty"`
}

// StructuredResponse is the canonical Fundi reply.
type StructuredResponse struct {
	Response            string           `json:"response"`
	Sentiment           string           `json:"sentiment"`
	Suggestions         []Suggestion     `json:"suggestions"`
	FollowUpQuestions   []string         `json:"followUpQuestions"`
	Personality         string           `json:"personality,omitempty"`
	IsEmergencyResponse bool             `json:"isEmergencyResponse,omitempty"`
	Resources           []CrisisResource `json:"resources,omitempty"`
	Actions             []Action         `json:"actions,omitempty"`
	Category            Category         `json:"category,omitempty"`
	Provider            string           `json:"provider,omitempty"`
}

// PageContext describes where in the app the user is chatting from.
type PageContext struct {
	CurrentPage      string   `json:"currentPage"`
	CurrentSection   string   `json:"currentSection,omitempty"`
	AvailableActions []string `json:"availableActions,omitempty"`
}

const apologyText = "I'm sorry, I'm having a little trouble answering right now. " +
	"Could you try asking again in a moment? In the meantime, you can keep exploring Fundamenta."

// HomeSuggestion is the safe navigation suggestion attached to failure responses.
func HomeSuggestion() Suggestion {
	return Suggestion{
		Text:        "Would you like me to take you back to the home page?",
		Path:        "/",
		Description: "Return to the Fundamenta home page",
	}
}

// ApologyResponse is the generic in-voice reply used when no provider could answer.
func ApologyResponse() StructuredResponse {
	return StructuredResponse{
		Response:          apologyText,
		Sentiment:         "apologetic",
		Suggestions:       []Suggestion{HomeSuggestion()},
		FollowUpQuestions: []string{},
		Personality:       "fundi",
	}
}
