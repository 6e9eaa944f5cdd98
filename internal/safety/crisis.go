// Package safety holds Fundi's keyword-driven safety filters: crisis detection with its
// fixed response templates, and topic disclaimers appended to system prompts.
package safety

import (
	"strings"

	"github.com/fundamenta/fundi/internal/models"
)

// CrisisType identifies which crisis template applies to a message.
type CrisisType string

const (
	CrisisSuicide          CrisisType = "suicide"
	CrisisSelfHarm         CrisisType = "self_harm"
	CrisisDomesticViolence CrisisType = "domestic_violence"
	CrisisSubstance        CrisisType = "substance"
	CrisisGeneral          CrisisType = "general"
)

// Priority orders crisis responses for operators.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
)

// CrisisRule maps a crisis type to the phrases that trigger it.
type CrisisRule struct {
	Type     CrisisType
	Keywords []string
}

// CrisisRules is checked in order; the first rule with a matching keyword decides the type.
var CrisisRules = []CrisisRule{
	{
		Type: CrisisSuicide,
		Keywords: []string{
			"kill myself", "suicide", "suicidal", "end my life", "want to die",
			"take my own life", "better off dead", "no reason to live", "end it all",
		},
	},
	{
		Type: CrisisSelfHarm,
		Keywords: []string{
			"self harm", "self-harm", "hurt myself", "harm myself", "cut myself",
			"cutting myself", "burn myself",
		},
	},
	{
		Type: CrisisDomesticViolence,
		Keywords: []string{
			"domestic violence", "abusive partner", "abusive relationship",
			"he hits me", "she hits me", "partner hits me", "husband hits me", "wife hits me",
			"boyfriend hits me", "girlfriend hits me", "he beats me", "she beats me",
			"abusing me", "afraid of my partner", "threatened to hurt me", "not safe at home",
		},
	},
	{
		Type: CrisisSubstance,
		Keywords: []string{
			"overdose", "overdosing", "overdosed", "took too many pills", "alcohol poisoning",
			"can't stop drinking", "can't stop using",
		},
	},
	{
		Type: CrisisGeneral,
		Keywords: []string{
			"i'm in danger", "i am in danger", "i'm in crisis", "i am in crisis", "someone is hurt",
			"medical emergency", "can't breathe", "chest pain",
		},
	},
}

// CrisisResponse is the fixed reply for one crisis type.
type CrisisResponse struct {
	Type      CrisisType
	Message   string
	Resources []models.CrisisResource
	Priority  Priority
	FollowUp  string
}

var (
	lifeline = models.CrisisResource{
		Name:        "988 Suicide & Crisis Lifeline",
		Contact:     "Call or text 988",
		Description: "Free, confidential support 24/7 in the US.",
	}
	crisisTextLine = models.CrisisResource{
		Name:        "Crisis Text Line",
		Contact:     "Text HOME to 741741",
		Description: "Text with a trained crisis counselor any time.",
	}
	emergencyServices = models.CrisisResource{
		Name:        "Emergency Services",
		Contact:     "Call 911",
		Description: "If you or someone else is in immediate danger.",
	}
	dvHotline = models.CrisisResource{
		Name:        "National Domestic Violence Hotline",
		Contact:     "Call 1-800-799-7233 or text START to 88788",
		Description: "Confidential help and safety planning 24/7.",
	}
	samhsa = models.CrisisResource{
		Name:        "SAMHSA National Helpline",
		Contact:     "Call 1-800-662-4357",
		Description: "Free treatment referral and information 24/7.",
	}
	poisonControl = models.CrisisResource{
		Name:        "Poison Control",
		Contact:     "Call 1-800-222-1222",
		Description: "Immediate help for a possible overdose or poisoning.",
	}
)

var crisisResponses = map[CrisisType]CrisisResponse{
	CrisisSuicide: {
		Message: "I'm really glad you told me, and I'm so sorry you're hurting right now. " +
			"You deserve support from a real person. Please reach out to the 988 Suicide & Crisis Lifeline " +
			"by calling or texting 988. If you are in immediate danger, call 911.",
		Resources: []models.CrisisResource{lifeline, crisisTextLine, emergencyServices},
		Priority:  PriorityCritical,
		FollowUp:  "Is there someone you trust who can be with you right now?",
	},
	CrisisSelfHarm: {
		Message: "Thank you for trusting me with this. You don't have to go through it alone. " +
			"A trained counselor can help right now: call or text 988, or text HOME to 741741.",
		Resources: []models.CrisisResource{lifeline, crisisTextLine, emergencyServices},
		Priority:  PriorityCritical,
		FollowUp:  "Are you somewhere safe right now?",
	},
	CrisisDomesticViolence: {
		Message: "Your safety matters. If you are in immediate danger, please call 911. " +
			"The National Domestic Violence Hotline can help you plan next steps confidentially.",
		Resources: []models.CrisisResource{dvHotline, emergencyServices},
		Priority:  PriorityCritical,
		FollowUp:  "Are you able to talk safely right now?",
	},
	CrisisSubstance: {
		Message: "This sounds serious. If someone may have overdosed, call 911 or Poison Control right away. " +
			"For ongoing support, the SAMHSA helpline is free and confidential.",
		Resources: []models.CrisisResource{emergencyServices, poisonControl, samhsa},
		Priority:  PriorityCritical,
	},
	CrisisGeneral: {
		Message: "It sounds like you may need help right away. If you or someone else is in danger, " +
			"please call 911. I can also point you to support resources.",
		Resources: []models.CrisisResource{emergencyServices, lifeline},
		Priority:  PriorityHigh,
		FollowUp:  "Would you like me to show you the emergency guides in Fundamenta?",
	},
}

// DetectCrisis reports whether the message matches any crisis keyword.
func DetectCrisis(message string) bool {
	_, ok := matchCrisis(message)
	return ok
}

// ClassifyCrisis returns the crisis type for the message, or CrisisGeneral when nothing more
// specific matches.
func ClassifyCrisis(message string) CrisisType {
	if t, ok := matchCrisis(message); ok {
		return t
	}
	return CrisisGeneral
}

func matchCrisis(message string) (CrisisType, bool) {
	lower := normalize(message)
	for _, rule := range CrisisRules {
		if containsAny(lower, rule.Keywords) {
			return rule.Type, true
		}
	}
	return "", false
}

// CrisisResponseFor returns the template for the given type. Unknown types get the general template.
func CrisisResponseFor(t CrisisType) CrisisResponse {
	resp, ok := crisisResponses[t]
	if !ok {
		t = CrisisGeneral
		resp = crisisResponses[CrisisGeneral]
	}
	resp.Type = t
	resp.Resources = append([]models.CrisisResource(nil), resp.Resources...)
	return resp
}

// EmergencyPath is where crisis responses offer to take the user.
const EmergencyPath = "/emergency"

// StructuredResponse renders the crisis template as a Fundi reply.
func (c CrisisResponse) StructuredResponse() models.StructuredResponse {
	followUps := []string{}
	if c.FollowUp != "" {
		followUps = append(followUps, c.FollowUp)
	}
	return models.StructuredResponse{
		Response:  c.Message,
		Sentiment: "concerned",
		Suggestions: []models.Suggestion{{
			Text:        "Would you like me to take you to the Emergency section?",
			Path:        EmergencyPath,
			Description: "Step-by-step emergency guides and hotlines",
		}},
		FollowUpQuestions:   followUps,
		Personality:         "fundi",
		IsEmergencyResponse: true,
		Resources:           c.Resources,
		Category:            models.CategoryEmergency,
	}
}

// normalize lowercases the message and folds typographic apostrophes.
func normalize(message string) string {
	return strings.ReplaceAll(strings.ToLower(message), "’", "'")
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
