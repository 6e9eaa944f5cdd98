package models

import (
	"errors"
	"strings"
	"testing"
)

func TestChatRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"valid", ChatRequest{Message: "hi", ConversationID: 1}, nil},
		{"empty message", ChatRequest{Message: "   "}, ErrEmptyMessage},
		{"too long", ChatRequest{Message: strings.Repeat("a", MaxMessageLength+1)}, ErrMessageTooLong},
		{"negative conversation", ChatRequest{Message: "hi", ConversationID: -1}, ErrInvalidConversation},
		{"bad role", ChatRequest{Message: "hi", PreviousMessages: []Message{{Role: "robot", Content: "x"}}}, ErrInvalidRole},
		{"bad category", ChatRequest{Message: "hi", Category: "gardening"}, ErrInvalidCategory},
		{"known category", ChatRequest{Message: "hi", Category: "homeMaintenance"}, nil},
		{"too much history", ChatRequest{Message: "hi", PreviousMessages: make([]Message, MaxHistoryMessages+1)}, ErrTooManyMessages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApologyResponseNeverEmpty(t *testing.T) {
	resp := ApologyResponse()
	if resp.Response == "" {
		t.Fatal("apology response must not be empty")
	}
	if resp.Sentiment != "apologetic" {
		t.Errorf("expected apologetic sentiment, got %q", resp.Sentiment)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0].Path != "/" {
		t.Errorf("expected a home suggestion, got %+v", resp.Suggestions)
	}

	// Each call returns an independent value.
	resp.Suggestions[0].Path = "/changed"
	if ApologyResponse().Suggestions[0].Path != "/" {
		t.Error("ApologyResponse should not share suggestion slices between calls")
	}
}

func TestSuccessAndErrorEnvelopes(t *testing.T) {
	ok := Success(map[string]int{"a": 1})
	if ok.Status != string(APIStatusOK) || ok.Result == nil {
		t.Errorf("unexpected success envelope: %+v", ok)
	}
	e := Error("boom")
	if e.Status != string(APIStatusError) || e.Message != "boom" {
		t.Errorf("unexpected error envelope: %+v", e)
	}
}
