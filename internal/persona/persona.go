// Package persona assembles Fundi's system prompts from structured persona records,
// the route table, the tone guide and a fixed set of formatting rules.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/routes"
	"github.com/fundamenta/fundi/internal/tone"
)

//go:embed personas.yaml
var personasYAML []byte

// ErrMissingPersona is returned when the document lacks a persona the builder needs.
var ErrMissingPersona = errors.New("missing persona")

// Persona is one category's assistant profile.
type Persona struct {
	Category     models.Category `yaml:"category"`
	Name         string          `yaml:"name"`
	Role         string          `yaml:"role"`
	Capabilities []string        `yaml:"capabilities"`
	Limitations  []string        `yaml:"limitations"`
	Tone         string          `yaml:"tone"`
}

// Feature is an entry in the app's feature knowledge base.
type Feature struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Document is the persona configuration file.
type Document struct {
	Personas        []Persona `yaml:"personas"`
	KnowledgeBase   []Feature `yaml:"knowledgeBase"`
	UserGuidance    string    `yaml:"userGuidance"`
	FormattingRules []string  `yaml:"formattingRules"`
}

// specializedOrder is the order specialized capabilities are listed in the general prompt.
var specializedOrder = []models.Category{
	models.CategoryFinance,
	models.CategoryCareer,
	models.CategoryWellness,
	models.CategoryLearning,
	models.CategoryEmergency,
	models.CategoryCooking,
	models.CategoryFitness,
}

// Builder builds system prompts. It holds only read-only data and is safe for concurrent use.
type Builder struct {
	personas map[models.Category]Persona
	doc      Document
	routes   *routes.Table
}

// Option configures a Builder.
type Option func(*Builder)

// WithRoutes overrides the route table used for the route listing.
func WithRoutes(t *routes.Table) Option {
	return func(b *Builder) {
		b.routes = t
	}
}

// NewBuilder parses a persona document. The general persona and every specialized persona
// listed in the general prompt must be present.
func NewBuilder(data []byte, opts ...Option) (*Builder, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	b := &Builder{
		personas: make(map[models.Category]Persona, len(doc.Personas)),
		doc:      doc,
		routes:   routes.Default(),
	}
	for _, p := range doc.Personas {
		if !models.IsValidCategory(p.Category) {
			return nil, fmt.Errorf("persona %q: %w", p.Name, models.ErrInvalidCategory)
		}
		b.personas[p.Category] = p
	}
	for _, c := range append([]models.Category{models.CategoryGeneral}, specializedOrder...) {
		if _, ok := b.personas[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPersona, c)
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

var defaultBuilder = mustBuilder()

func mustBuilder() *Builder {
	b, err := NewBuilder(personasYAML)
	if err != nil {
		panic(err)
	}
	return b
}

// Default returns the builder for the embedded persona document.
func Default() *Builder {
	return defaultBuilder
}

// BuildSystemPrompt builds a prompt with the default builder and personality.
func BuildSystemPrompt(category models.Category, page models.PageContext) string {
	return defaultBuilder.BuildSystemPrompt(category, page, tone.DefaultPersonality())
}

// Persona returns the persona for category, falling back to general.
func (b *Builder) Persona(category models.Category) Persona {
	if p, ok := b.personas[category]; ok {
		return p
	}
	return b.personas[models.CategoryGeneral]
}

// BuildSystemPrompt assembles the full system prompt for category. The output depends only on
// its inputs and the builder's static data.
func (b *Builder) BuildSystemPrompt(category models.Category, page models.PageContext, personality tone.Personality) string {
	if _, ok := b.personas[category]; !ok {
		category = models.CategoryGeneral
	}

	var sb strings.Builder
	writePersona(&sb, b.Persona(category))

	if category == models.CategoryGeneral {
		sb.WriteString("\nSPECIALIZED KNOWLEDGE:\n")
		for _, c := range specializedOrder {
			p := b.personas[c]
			fmt.Fprintf(&sb, "\n%s capabilities:\n", strings.ToUpper(string(c)))
			writeList(&sb, p.Capabilities)
		}
	}

	b.writeContext(&sb, category, page)
	sb.WriteString(tone.BuildToneGuide(personality))
	b.writeKnowledgeBase(&sb)

	if b.doc.UserGuidance != "" {
		sb.WriteString("\nUSER GUIDANCE:\n")
		sb.WriteString(strings.TrimSpace(b.doc.UserGuidance))
		sb.WriteString("\n")
	}

	sb.WriteString("\nFORMATTING AND NAVIGATION RULES:\n")
	writeList(&sb, b.doc.FormattingRules)
	return sb.String()
}

func writePersona(sb *strings.Builder, p Persona) {
	fmt.Fprintf(sb, "You are %s, %s.\n", p.Name, p.Role)
	if p.Tone != "" {
		fmt.Fprintf(sb, "Your tone is %s.\n", p.Tone)
	}
	if len(p.Capabilities) > 0 {
		sb.WriteString("\nCapabilities:\n")
		writeList(sb, p.Capabilities)
	}
	if len(p.Limitations) > 0 {
		sb.WriteString("\nLimitations:\n")
		writeList(sb, p.Limitations)
	}
}

func (b *Builder) writeContext(sb *strings.Builder, category models.Category, page models.PageContext) {
	sb.WriteString("\nCURRENT CONTEXT:\n")
	current := page.CurrentPage
	if current == "" {
		current = "unknown"
	}
	fmt.Fprintf(sb, "- Current page: %s\n", current)
	if page.CurrentSection != "" {
		fmt.Fprintf(sb, "- Current section: %s\n", page.CurrentSection)
	}
	if len(page.AvailableActions) > 0 {
		fmt.Fprintf(sb, "- Available actions: %s\n", strings.Join(page.AvailableActions, ", "))
	}

	sb.WriteString("\nAVAILABLE ROUTES:\n")
	for _, r := range b.routes.ForCategory(category) {
		fmt.Fprintf(sb, "- %s (%s): %s\n", r.Path, r.Name, r.Description)
	}
}

func (b *Builder) writeKnowledgeBase(sb *strings.Builder) {
	if len(b.doc.KnowledgeBase) == 0 {
		return
	}
	sb.WriteString("\nFUNDAMENTA FEATURES:\n")
	for _, f := range b.doc.KnowledgeBase {
		fmt.Fprintf(sb, "- %s: %s\n", f.Name, f.Description)
	}
}

func writeList(sb *strings.Builder, items []string) {
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}
