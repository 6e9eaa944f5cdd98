package provider

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fundamenta/fundi/internal/models"
)

const defaultSentiment = "neutral"

// promotedKeys are tried in order when a JSON reply has no "response" field.
var promotedKeys = []string{"content", "message", "text"}

// ParseStructuredResponse turns raw model output into a StructuredResponse.
//
// A JSON object's "response" is used when present, else the first of content, message or text
// is promoted. Text that is not JSON is used verbatim. Empty output and JSON objects with
// nothing to promote return ErrEmptyResponse.
func ParseStructuredResponse(raw string) (models.StructuredResponse, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return models.StructuredResponse{}, ErrEmptyResponse
	}

	if !gjson.Valid(text) {
		return wrapText(text), nil
	}
	doc := gjson.Parse(text)
	switch {
	case doc.IsObject():
	case doc.Type == gjson.String:
		if s := strings.TrimSpace(doc.String()); s != "" {
			return wrapText(s), nil
		}
		return models.StructuredResponse{}, ErrEmptyResponse
	default:
		return wrapText(text), nil
	}

	response := strings.TrimSpace(doc.Get("response").String())
	if response == "" {
		for _, key := range promotedKeys {
			if s := strings.TrimSpace(doc.Get(key).String()); s != "" {
				response = s
				break
			}
		}
	}
	if response == "" {
		return models.StructuredResponse{}, ErrEmptyResponse
	}

	out := models.StructuredResponse{
		Response:          response,
		Sentiment:         doc.Get("sentiment").String(),
		Suggestions:       parseSuggestions(doc.Get("suggestions")),
		FollowUpQuestions: parseStrings(doc.Get("followUpQuestions")),
		Personality:       doc.Get("personality").String(),
	}
	if out.Sentiment == "" {
		out.Sentiment = defaultSentiment
	}
	return out, nil
}

func wrapText(text string) models.StructuredResponse {
	return models.StructuredResponse{
		Response:          text,
		Sentiment:         defaultSentiment,
		Suggestions:       []models.Suggestion{},
		FollowUpQuestions: []string{},
	}
}

func parseSuggestions(v gjson.Result) []models.Suggestion {
	out := []models.Suggestion{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		if item.Type == gjson.String {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, models.Suggestion{Text: s})
			}
			continue
		}
		if !item.IsObject() {
			continue
		}
		s := models.Suggestion{
			Text:        strings.TrimSpace(item.Get("text").String()),
			Path:        strings.TrimSpace(item.Get("path").String()),
			Description: item.Get("description").String(),
		}
		if a := item.Get("action"); a.Exists() {
			s.Action = a.Value()
		}
		if s.Text == "" && s.Path == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func parseStrings(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[\"") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
