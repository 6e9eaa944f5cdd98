package genai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func prompt(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system), openai.UserMessage(user)}
}

func TestGenerateJSONWithMessages_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateJSONWithMessages(context.Background(), prompt("sys", "usr"))
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateJSONWithMessages_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GenerateJSONWithMessages(context.Background(), prompt("sys", "usr"))
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerateJSONWithMessages_SetsJSONFormat(t *testing.T) {
	mock := &mockChatService{resp: completion(`{"response":"hi"}`)}
	client := &Client{chat: mock, model: "test-model", temperature: 0.2, maxCompletionTokens: 50}

	out, err := client.GenerateJSONWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("sys"),
		openai.UserMessage("hi"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"response":"hi"}` {
		t.Errorf("unexpected content %q", out)
	}
	if mock.lastParams.ResponseFormat.OfJSONObject == nil {
		t.Error("expected JSON object response format")
	}
	if len(mock.lastParams.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(mock.lastParams.Messages))
	}
	if string(mock.lastParams.Model) != "test-model" {
		t.Errorf("expected model test-model, got %q", mock.lastParams.Model)
	}
}

func TestGenerateJSONWithMessages_ContextCancelled(t *testing.T) {
	mock := &mockChatService{err: context.Canceled}
	client := &Client{chat: mock}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.GenerateJSONWithMessages(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-test"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.Model() != "gpt-test" {
		t.Errorf("expected model gpt-test, got %q", cli.Model())
	}
	if cli.maxCompletionTokens != DefaultMaxCompletionTokens {
		t.Errorf("expected default max tokens, got %d", cli.maxCompletionTokens)
	}
}

func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()
	client := &Client{
		chat:        &mockChatService{resp: completion("Test response")},
		model:       "test-model",
		temperature: 0.7,
		debugMode:   true,
		stateDir:    tempDir,
	}

	if _, err := client.GenerateJSONWithMessages(context.Background(), prompt("System prompt", "User prompt")); err != nil {
		t.Fatalf("GenerateJSONWithMessages failed: %v", err)
	}

	debugDir := filepath.Join(tempDir, "debug")
	files, err := os.ReadDir(debugDir)
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}

	content, err := os.ReadFile(filepath.Join(debugDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if logEntry["method"] != "GenerateJSONWithMessages" {
		t.Errorf("Expected method 'GenerateJSONWithMessages', got %v", logEntry["method"])
	}
}

func TestDebugLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()
	client := &Client{
		chat:     &mockChatService{resp: completion("Test response")},
		model:    "test-model",
		stateDir: tempDir,
	}
	if _, err := client.GenerateJSONWithMessages(context.Background(), prompt("System prompt", "User prompt")); err != nil {
		t.Fatalf("GenerateJSONWithMessages failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}
