package provider

import (
	"errors"
	"testing"
)

func TestParseStructuredResponse(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantResponse  string
		wantSentiment string
		wantSuggest   int
		wantFollowUps int
		wantErr       error
	}{
		{
			name:          "full object",
			raw:           `{"response":"Hi!","sentiment":"friendly","suggestions":[{"text":"Budget?","path":"/finance/budget"}],"followUpQuestions":["More?"]}`,
			wantResponse:  "Hi!",
			wantSentiment: "friendly",
			wantSuggest:   1,
			wantFollowUps: 1,
		},
		{name: "promote content", raw: `{"content":"From content"}`, wantResponse: "From content", wantSentiment: "neutral"},
		{name: "promote message", raw: `{"message":"From message"}`, wantResponse: "From message", wantSentiment: "neutral"},
		{name: "promote text", raw: `{"text":"From text"}`, wantResponse: "From text", wantSentiment: "neutral"},
		{name: "response wins over content", raw: `{"response":"R","content":"C"}`, wantResponse: "R", wantSentiment: "neutral"},
		{name: "plain text", raw: "Just some words.", wantResponse: "Just some words.", wantSentiment: "neutral"},
		{name: "fenced json", raw: "```json\n{\"response\":\"Fenced\"}\n```", wantResponse: "Fenced", wantSentiment: "neutral"},
		{name: "json string", raw: `"quoted"`, wantResponse: "quoted", wantSentiment: "neutral"},
		{name: "string suggestions", raw: `{"response":"x","suggestions":["Try this?",""]}`, wantResponse: "x", wantSentiment: "neutral", wantSuggest: 1},
		{name: "empty", raw: "   ", wantErr: ErrEmptyResponse},
		{name: "object without text", raw: `{"foo":1}`, wantErr: ErrEmptyResponse},
		{name: "blank response", raw: `{"response":"  "}`, wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredResponse(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Response != tt.wantResponse {
				t.Errorf("response = %q, want %q", got.Response, tt.wantResponse)
			}
			if got.Sentiment != tt.wantSentiment {
				t.Errorf("sentiment = %q, want %q", got.Sentiment, tt.wantSentiment)
			}
			if len(got.Suggestions) != tt.wantSuggest {
				t.Errorf("suggestions = %d, want %d", len(got.Suggestions), tt.wantSuggest)
			}
			if len(got.FollowUpQuestions) != tt.wantFollowUps {
				t.Errorf("followUps = %d, want %d", len(got.FollowUpQuestions), tt.wantFollowUps)
			}
			if got.Suggestions == nil || got.FollowUpQuestions == nil {
				t.Error("slices must be non-nil")
			}
		})
	}
}
