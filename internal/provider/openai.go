package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	"github.com/fundamenta/fundi/internal/models"
)

// OpenAIName identifies the primary provider.
const OpenAIName = "openai"

// jsonCompleter is the subset of genai.Client the adapter needs.
type jsonCompleter interface {
	GenerateJSONWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// OpenAIProvider is the primary provider backed by OpenAI chat completions.
type OpenAIProvider struct {
	client jsonCompleter
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider wraps a genai client.
func NewOpenAIProvider(client jsonCompleter) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string {
	return OpenAIName
}

// GenerateResponse answers message. On failure the local fallback is returned with the error.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, message, systemPrompt string, history []models.Message) (models.StructuredResponse, error) {
	if len(history) == 0 && IsGreeting(message) {
		slog.Debug("OpenAIProvider.GenerateResponse: greeting short-circuit")
		return GreetingResponse(), nil
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	raw, err := p.client.GenerateJSONWithMessages(ctx, messages)
	if err != nil {
		return LocalFallback(message), newError(OpenAIName, "GenerateResponse", err)
	}
	resp, err := ParseStructuredResponse(raw)
	if err != nil {
		return LocalFallback(message), newError(OpenAIName, "GenerateResponse", err)
	}
	return resp, nil
}

const classifyPrompt = "You classify messages for a life-skills app. Reply with a JSON object " +
	`{"category": "<one of: %s>", "confidence": <number between 0 and 1>}.`

// ClassifyCategory asks the model for one of the fixed categories.
func (p *OpenAIProvider) ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error) {
	labels := make([]string, len(models.AllCategories))
	for i, c := range models.AllCategories {
		labels[i] = string(c)
	}
	system := fmt.Sprintf(classifyPrompt, strings.Join(labels, ", "))
	if preferredCategory != "" {
		system += fmt.Sprintf(" The user is browsing the %s section.", preferredCategory)
	}

	raw, err := p.client.GenerateJSONWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(message),
	})
	if err != nil {
		return models.CategoryResult{}, newError(OpenAIName, "ClassifyCategory", err)
	}
	category := models.Category(gjson.Get(raw, "category").String())
	if !models.IsValidCategory(category) {
		return models.CategoryResult{}, newError(OpenAIName, "ClassifyCategory", fmt.Errorf("%w: %q", models.ErrInvalidCategory, category))
	}
	return models.CategoryResult{Category: category, Confidence: clamp01(gjson.Get(raw, "confidence").Float())}, nil
}

const emotionPrompt = "Identify the emotional tone of the user's message. Reply with a JSON object " +
	`{"primaryEmotion": "<single lowercase word>", "emotionScore": <0 to 1>, "emotions": [{"emotion": "<word>", "score": <0 to 1>}]}.`

// AnalyzeEmotion asks the model for the message's emotional tone.
func (p *OpenAIProvider) AnalyzeEmotion(ctx context.Context, message string) (models.EmotionResult, error) {
	raw, err := p.client.GenerateJSONWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(emotionPrompt),
		openai.UserMessage(message),
	})
	if err != nil {
		return models.EmotionResult{}, newError(OpenAIName, "AnalyzeEmotion", err)
	}
	primary := strings.ToLower(strings.TrimSpace(gjson.Get(raw, "primaryEmotion").String()))
	if primary == "" {
		return models.EmotionResult{}, newError(OpenAIName, "AnalyzeEmotion", ErrEmptyResponse)
	}
	result := models.EmotionResult{
		PrimaryEmotion: primary,
		EmotionScore:   clamp01(gjson.Get(raw, "emotionScore").Float()),
	}
	for _, e := range gjson.Get(raw, "emotions").Array() {
		name := e.Get("emotion").String()
		if name == "" {
			continue
		}
		result.Emotions = append(result.Emotions, models.EmotionScore{Emotion: name, Score: clamp01(e.Get("score").Float())})
	}
	return result, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
