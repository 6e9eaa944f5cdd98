package safety

import "strings"

// Topic is a subject that requires a disclaimer in the system prompt.
type Topic string

const (
	TopicNutrition    Topic = "nutrition"
	TopicExercise     Topic = "exercise"
	TopicMentalHealth Topic = "mental_health"
	TopicFinance      Topic = "finance"
	TopicLegal        Topic = "legal"
	TopicMedication   Topic = "medication"
	TopicEmployment   Topic = "employment"
)

// DisclaimerRule pairs a topic with its trigger keywords and the sentence appended for it.
type DisclaimerRule struct {
	Topic      Topic
	Keywords   []string
	Disclaimer string
}

// DisclaimerRules is iterated in order; appended blocks follow the same order.
var DisclaimerRules = []DisclaimerRule{
	{
		Topic:      TopicNutrition,
		Keywords:   []string{"nutrition", "diet", "calorie", "vitamin", "supplement", "meal plan", "weight loss", "protein", "food allerg"},
		Disclaimer: "Nutrition information is general and educational. Encourage the user to consult a registered dietitian or doctor before making significant dietary changes, especially with allergies or medical conditions.",
	},
	{
		Topic:      TopicExercise,
		Keywords:   []string{"exercise", "workout", "work out", "cardio", "weightlifting", "lifting weights", "stretching", "jogging", "training plan"},
		Disclaimer: "Exercise guidance is general. Remind the user to check with a healthcare provider before starting a new program and to stop if they feel pain, dizziness, or shortness of breath.",
	},
	{
		Topic:      TopicMentalHealth,
		Keywords:   []string{"mental health", "anxiety", "anxious", "depress", "stress", "overwhelm", "panic", "therapy", "therapist", "lonely"},
		Disclaimer: "You are not a therapist. Offer supportive, general wellness information only and encourage the user to reach a licensed mental health professional for ongoing concerns, or call or text 988 in a crisis.",
	},
	{
		Topic:      TopicFinance,
		Keywords:   []string{"401k", "401(k)", "roth", "invest", "stocks", "stock market", "retirement", "mortgage", "credit score", "taxes", "tax return", "loan", "debt"},
		Disclaimer: "Financial information is educational, not personalized financial advice. Suggest the user consult a qualified financial professional before making investment, tax, or major borrowing decisions.",
	},
	{
		Topic:      TopicLegal,
		Keywords:   []string{"legal", "lawyer", "attorney", "lawsuit", "landlord", "eviction", "contract", "court", "custody"},
		Disclaimer: "Legal information is general and not legal advice. Laws vary by location; recommend the user contact a licensed attorney or local legal aid for their situation.",
	},
	{
		Topic:      TopicMedication,
		Keywords:   []string{"medication", "medicine", "prescription", "dosage", "dose", "pills", "side effect", "antibiotic", "ibuprofen"},
		Disclaimer: "Never advise on starting, stopping, or dosing medication. Direct the user to their doctor or pharmacist for medication questions.",
	},
	{
		Topic:      TopicEmployment,
		Keywords:   []string{"job", "resume", "interview", "salary", "employer", "fired", "laid off", "workplace", "hiring"},
		Disclaimer: "Employment guidance is general. Employment law and workplace policies differ; suggest HR, a career counselor, or an employment attorney for disputes or legal questions.",
	},
}

const disclaimerPrefix = "\n\nIMPORTANT DISCLAIMER ("

// DetectTopics returns every disclaimer topic whose keywords appear in the message, in table order.
func DetectTopics(message string) []Topic {
	lower := normalize(message)
	var topics []Topic
	for _, rule := range DisclaimerRules {
		if containsAny(lower, rule.Keywords) {
			topics = append(topics, rule.Topic)
		}
	}
	return topics
}

// InjectDisclaimers returns systemPrompt with one disclaimer block appended per topic detected in
// message. The input prompt is not modified.
func InjectDisclaimers(systemPrompt, message string) string {
	lower := normalize(message)
	var b strings.Builder
	b.WriteString(systemPrompt)
	for _, rule := range DisclaimerRules {
		if !containsAny(lower, rule.Keywords) {
			continue
		}
		b.WriteString(disclaimerPrefix)
		b.WriteString(string(rule.Topic))
		b.WriteString("): ")
		b.WriteString(rule.Disclaimer)
	}
	return b.String()
}
