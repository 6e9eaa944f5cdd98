package persona

import (
	"errors"
	"strings"
	"testing"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/tone"
)

func TestBuildSystemPrompt_GeneralAggregatesCapabilities(t *testing.T) {
	prompt := BuildSystemPrompt(models.CategoryGeneral, models.PageContext{CurrentPage: "/"})

	last := -1
	for _, c := range specializedOrder {
		heading := strings.ToUpper(string(c)) + " capabilities:"
		idx := strings.Index(prompt, heading)
		if idx < 0 {
			t.Fatalf("missing heading %q", heading)
		}
		if idx < last {
			t.Errorf("heading %q out of order", heading)
		}
		last = idx
	}
	if strings.Contains(prompt, "HOMEMAINTENANCE capabilities:") {
		t.Error("home maintenance is not part of the general aggregation")
	}
	// general lists every route
	if !strings.Contains(prompt, "/home-maintenance/diagnostic") || !strings.Contains(prompt, "/finance/budget") {
		t.Error("general prompt should list all routes")
	}
}

func TestBuildSystemPrompt_SpecializedUsesOwnPersona(t *testing.T) {
	prompt := BuildSystemPrompt(models.CategoryFinance, models.PageContext{CurrentPage: "/finance", CurrentSection: "budget"})

	if !strings.HasPrefix(prompt, "You are Fundi Finance Coach") {
		t.Errorf("expected finance persona first, got %q", prompt[:60])
	}
	if strings.Contains(prompt, "SPECIALIZED KNOWLEDGE") {
		t.Error("specialized prompts must not aggregate other personas")
	}
	if !strings.Contains(prompt, "- Current section: budget") {
		t.Error("missing current section")
	}
	if strings.Contains(prompt, "/career/resume") {
		t.Error("finance prompt should only list finance routes")
	}
	if !strings.Contains(prompt, "/finance/mortgage") {
		t.Error("finance prompt should list finance routes")
	}
}

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	prompt := BuildSystemPrompt(models.CategoryCareer, models.PageContext{CurrentPage: "/career", AvailableActions: []string{"save", "share"}})
	markers := []string{"CURRENT CONTEXT:", "AVAILABLE ROUTES:", "<PERSONALITY>", "FUNDAMENTA FEATURES:", "USER GUIDANCE:", "FORMATTING AND NAVIGATION RULES:"}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		if idx < 0 {
			t.Fatalf("missing section %q", m)
		}
		if idx < last {
			t.Errorf("section %q out of order", m)
		}
		last = idx
	}
	if !strings.Contains(prompt, "- Available actions: save, share") {
		t.Error("missing available actions")
	}
	if !strings.Contains(prompt, "permission question") || !strings.Contains(prompt, "markdown emphasis") {
		t.Error("formatting rules missing")
	}
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	page := models.PageContext{CurrentPage: "/wellness"}
	if BuildSystemPrompt(models.CategoryWellness, page) != BuildSystemPrompt(models.CategoryWellness, page) {
		t.Error("prompt must be deterministic")
	}
}

func TestBuildSystemPrompt_UnknownCategoryIsGeneral(t *testing.T) {
	page := models.PageContext{}
	if BuildSystemPrompt("gardening", page) != BuildSystemPrompt(models.CategoryGeneral, page) {
		t.Error("unknown category should build the general prompt")
	}
}

func TestBuildSystemPrompt_PersonalityChangesToneGuide(t *testing.T) {
	b := Default()
	calm := tone.Personality{Name: "fundi", Tags: []string{"calm_deescalating"}}
	prompt := b.BuildSystemPrompt(models.CategoryGeneral, models.PageContext{}, calm)
	if !strings.Contains(prompt, "Stay calm") {
		t.Error("expected calm tone rule in prompt")
	}
}

func TestNewBuilder_MissingPersona(t *testing.T) {
	doc := []byte("personas:\n  - category: general\n    name: Fundi\n    role: helper\n")
	_, err := NewBuilder(doc)
	if !errors.Is(err, ErrMissingPersona) {
		t.Errorf("expected ErrMissingPersona, got %v", err)
	}
}

func TestNewBuilder_InvalidCategory(t *testing.T) {
	doc := []byte("personas:\n  - category: gardening\n    name: G\n")
	_, err := NewBuilder(doc)
	if !errors.Is(err, models.ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}
