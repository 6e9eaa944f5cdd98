package provider

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fundamenta/fundi/internal/classifier"
	"github.com/fundamenta/fundi/internal/huggingface"
	"github.com/fundamenta/fundi/internal/models"
)

// HuggingFaceName identifies the secondary provider.
const HuggingFaceName = "huggingface"

// maxPromptHistory is how many previous turns are sent to the generation model.
const maxPromptHistory = 6

// inferenceClient is the subset of huggingface.Client the adapter needs.
type inferenceClient interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ZeroShot(ctx context.Context, text string, labels []string) ([]huggingface.Label, error)
	ClassifyEmotion(ctx context.Context, text string) ([]huggingface.Label, error)
}

// HuggingFaceProvider is the secondary provider backed by the Inference API.
type HuggingFaceProvider struct {
	client inferenceClient
}

var _ Provider = (*HuggingFaceProvider)(nil)

// NewHuggingFaceProvider wraps an inference client.
func NewHuggingFaceProvider(client inferenceClient) *HuggingFaceProvider {
	return &HuggingFaceProvider{client: client}
}

func (p *HuggingFaceProvider) Name() string {
	return HuggingFaceName
}

// GenerateResponse answers message. On failure the local fallback is returned with the error.
func (p *HuggingFaceProvider) GenerateResponse(ctx context.Context, message, systemPrompt string, history []models.Message) (models.StructuredResponse, error) {
	if len(history) == 0 && IsGreeting(message) {
		slog.Debug("HuggingFaceProvider.GenerateResponse: greeting short-circuit")
		return GreetingResponse(), nil
	}

	raw, err := p.client.GenerateText(ctx, buildChatPrompt(systemPrompt, history, message))
	if err != nil {
		return LocalFallback(message), newError(HuggingFaceName, "GenerateResponse", err)
	}
	resp, err := ParseStructuredResponse(raw)
	if err != nil {
		return LocalFallback(message), newError(HuggingFaceName, "GenerateResponse", err)
	}
	return resp, nil
}

// buildChatPrompt renders the conversation in the Zephyr chat template.
func buildChatPrompt(systemPrompt string, history []models.Message, message string) string {
	if len(history) > maxPromptHistory {
		history = history[len(history)-maxPromptHistory:]
	}
	var b strings.Builder
	b.WriteString("<|system|>\n")
	b.WriteString(systemPrompt)
	b.WriteString("</s>\n")
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			b.WriteString("<|assistant|>\n")
		case models.RoleSystem:
			b.WriteString("<|system|>\n")
		default:
			b.WriteString("<|user|>\n")
		}
		b.WriteString(m.Content)
		b.WriteString("</s>\n")
	}
	b.WriteString("<|user|>\n")
	b.WriteString(message)
	b.WriteString("</s>\n<|assistant|>\n")
	return b.String()
}

// ClassifyCategory runs the two-pass zero-shot classification. preferredCategory is not used
// by the zero-shot model.
func (p *HuggingFaceProvider) ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error) {
	result, err := classifier.ZeroShotClassify(ctx, p.client, message)
	if err != nil {
		return models.CategoryResult{}, newError(HuggingFaceName, "ClassifyCategory", err)
	}
	return result, nil
}

// AnalyzeEmotion scores the message with the emotion model.
func (p *HuggingFaceProvider) AnalyzeEmotion(ctx context.Context, message string) (models.EmotionResult, error) {
	labels, err := p.client.ClassifyEmotion(ctx, message)
	if err != nil {
		return models.EmotionResult{}, newError(HuggingFaceName, "AnalyzeEmotion", err)
	}
	if len(labels) == 0 {
		return models.EmotionResult{}, newError(HuggingFaceName, "AnalyzeEmotion", ErrEmptyResponse)
	}
	result := models.EmotionResult{
		PrimaryEmotion: strings.ToLower(labels[0].Label),
		EmotionScore:   labels[0].Score,
		Emotions:       make([]models.EmotionScore, 0, len(labels)),
	}
	for _, l := range labels {
		result.Emotions = append(result.Emotions, models.EmotionScore{Emotion: strings.ToLower(l.Label), Score: l.Score})
	}
	return result, nil
}
