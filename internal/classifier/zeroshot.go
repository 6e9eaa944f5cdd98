package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundamenta/fundi/internal/huggingface"
	"github.com/fundamenta/fundi/internal/models"
)

// Thresholds for the zero-shot passes.
const (
	// FirstPassThreshold is the score below which a narrower second pass runs.
	FirstPassThreshold = 0.6
	// SecondPassFloor is the score below which the result collapses to general.
	SecondPassFloor = 0.3
)

// ErrNoLabels is returned when the zero-shot model scores nothing.
var ErrNoLabels = errors.New("zero-shot returned no labels")

// ZeroShotter scores text against candidate labels, best first.
type ZeroShotter interface {
	ZeroShot(ctx context.Context, text string, labels []string) ([]huggingface.Label, error)
}

// categoryLabels are the natural-language labels sent to the zero-shot model.
var categoryLabels = []struct {
	Category models.Category
	Label    string
}{
	{models.CategoryFinance, "personal finance and money"},
	{models.CategoryCareer, "career and jobs"},
	{models.CategoryWellness, "mental wellness and stress"},
	{models.CategoryLearning, "learning and education"},
	{models.CategoryEmergency, "emergency and safety"},
	{models.CategoryCooking, "cooking and food"},
	{models.CategoryFitness, "fitness and exercise"},
	{models.CategoryHomeMaintenance, "home maintenance and repair"},
	{models.CategoryGeneral, "general conversation"},
}

// subLabels narrow the second pass to the top candidate's domain.
var subLabels = map[models.Category][]string{
	models.CategoryFinance:         {"budgeting", "saving money", "credit and debt", "investing", "buying a home", "taxes"},
	models.CategoryCareer:          {"resume writing", "job interview", "job search", "workplace skills"},
	models.CategoryWellness:        {"stress relief", "sleep", "mental health", "mindfulness"},
	models.CategoryLearning:        {"studying", "online course", "learning a new skill"},
	models.CategoryEmergency:       {"first aid", "fire safety", "natural disaster", "medical emergency"},
	models.CategoryCooking:         {"recipe", "meal prep", "kitchen skills", "food safety"},
	models.CategoryFitness:         {"workout routine", "strength training", "running", "stretching"},
	models.CategoryHomeMaintenance: {"plumbing repair", "appliance repair", "home cleaning", "electrical problem"},
}

// CategoryLabels returns the first-pass labels in category order.
func CategoryLabels() []string {
	out := make([]string, len(categoryLabels))
	for i, cl := range categoryLabels {
		out[i] = cl.Label
	}
	return out
}

func categoryForLabel(label string) (models.Category, bool) {
	for _, cl := range categoryLabels {
		if cl.Label == label {
			return cl.Category, true
		}
	}
	return "", false
}

// ZeroShotClassify runs the two-pass zero-shot classification. A confident first pass is
// returned directly. Otherwise the top candidate's sub-labels are scored; a second-pass score
// below SecondPassFloor collapses the result to general.
func ZeroShotClassify(ctx context.Context, zs ZeroShotter, message string) (models.CategoryResult, error) {
	first, err := zs.ZeroShot(ctx, message, CategoryLabels())
	if err != nil {
		return models.CategoryResult{}, fmt.Errorf("first pass: %w", err)
	}
	if len(first) == 0 {
		return models.CategoryResult{}, ErrNoLabels
	}
	top, ok := categoryForLabel(first[0].Label)
	if !ok {
		return models.CategoryResult{}, fmt.Errorf("first pass: unknown label %q", first[0].Label)
	}
	if first[0].Score >= FirstPassThreshold {
		return models.CategoryResult{Category: top, Confidence: first[0].Score}, nil
	}

	labels, ok := subLabels[top]
	if !ok {
		return models.CategoryResult{Category: models.CategoryGeneral, Confidence: first[0].Score}, nil
	}
	second, err := zs.ZeroShot(ctx, message, labels)
	if err != nil {
		return models.CategoryResult{}, fmt.Errorf("second pass: %w", err)
	}
	if len(second) == 0 || second[0].Score < SecondPassFloor {
		return models.CategoryResult{Category: models.CategoryGeneral, Confidence: first[0].Score}, nil
	}
	return models.CategoryResult{Category: top, Confidence: second[0].Score}, nil
}
