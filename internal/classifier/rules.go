package classifier

import (
	"strings"
	"unicode"

	"github.com/fundamenta/fundi/internal/models"
)

// Rule is one keyword heuristic. Every group in AllOf must contribute at least one match, and
// no Exclude term may appear.
type Rule struct {
	Name       string
	Category   models.Category
	Confidence float64
	AllOf      [][]string
	Exclude    []string
}

var (
	financeTerms  = []string{"financ", "money", "budget", "invest", "credit", "saving", "debt"}
	learningTerms = []string{"learn", "education", "literacy", "course", "teach", "class", "lesson"}

	mentalHealthTerms = []string{
		"anxiety", "anxious", "stressed", "stress", "overwhelmed", "panic", "meditation",
		"depressed", "depression", "burnout", "burned out", "lonely", "mental health", "mindfulness",
	}

	careerTerms = []string{
		"resume", "cv", "cover letter", "job", "jobs", "interview", "career", "salary", "promotion",
		"linkedin", "hiring", "coworker", "boss",
	}

	// householdProblemTerms name a home problem on their own.
	householdProblemTerms = []string{
		"leak", "plumbing", "faucet", "toilet", "furnace", "hvac", "drywall", "gutter",
		"water heater", "mold", "circuit breaker", "clogged drain", "burst pipe",
	}

	// repairTerms only count alongside a household object, so "fix my budget" stays out.
	repairTerms = []string{"repair", "fix", "fixing", "broken", "broke", "replace", "install"}

	householdObjectTerms = []string{
		"appliance", "sink", "dishwasher", "washing machine", "dryer", "fridge", "refrigerator",
		"the oven", "my oven", "stove", "garbage disposal", "the roof", "my roof", "ceiling", "cabinet", "fence", "garage door",
		"light switch", "outlet", "thermostat", "pipes", "shower", "bathtub", "door hinge", "camera",
	}

	// careerExclusions keep job language out of home maintenance.
	careerExclusions = []string{"resume", "job", "jobs", "cv", "cover letter"}
)

// Rules are evaluated in order and the first match wins. Career precedes home maintenance.
var Rules = []Rule{
	{
		Name:       "finance_education",
		Category:   models.CategoryFinance,
		Confidence: 0.95,
		AllOf:      [][]string{financeTerms, learningTerms},
	},
	{
		Name:       "mental_health",
		Category:   models.CategoryWellness,
		Confidence: 0.9,
		AllOf:      [][]string{mentalHealthTerms},
	},
	{
		Name:       "career",
		Category:   models.CategoryCareer,
		Confidence: 0.85,
		AllOf:      [][]string{careerTerms},
	},
	{
		Name:       "home_maintenance",
		Category:   models.CategoryHomeMaintenance,
		Confidence: 0.85,
		AllOf:      [][]string{householdProblemTerms},
		Exclude:    careerExclusions,
	},
	{
		Name:       "home_repair",
		Category:   models.CategoryHomeMaintenance,
		Confidence: 0.85,
		AllOf:      [][]string{repairTerms, householdObjectTerms},
		Exclude:    careerExclusions,
	},
}

// Match reports whether the rule applies to an already normalized message.
func (r Rule) Match(normalized string) bool {
	if len(r.AllOf) == 0 {
		return false
	}
	for _, group := range r.AllOf {
		if !containsAnyTerm(normalized, group) {
			return false
		}
	}
	return !containsAnyTerm(normalized, r.Exclude)
}

// MatchRules returns the first rule matching message.
func MatchRules(message string) (Rule, bool) {
	normalized := Normalize(message)
	for _, r := range Rules {
		if r.Match(normalized) {
			return r, true
		}
	}
	return Rule{}, false
}

// Normalize lowercases and collapses whitespace.
func Normalize(message string) string {
	return strings.Join(strings.Fields(strings.ToLower(message)), " ")
}

func containsAnyTerm(s string, terms []string) bool {
	for _, t := range terms {
		if containsTerm(s, t) {
			return true
		}
	}
	return false
}

// containsTerm is substring containment, except that terms of three letters or fewer must
// stand alone so "cv" does not match inside other words.
func containsTerm(s, term string) bool {
	if len(term) > 3 {
		return strings.Contains(s, term)
	}
	for from := 0; ; {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if boundary(s, start-1) && boundary(s, end) {
			return true
		}
		from = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
