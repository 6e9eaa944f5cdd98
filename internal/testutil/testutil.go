// Package testutil provides common test utilities and helpers for Fundi tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/store"
)

// APIResult is models.APIResponse with the result left undecoded.
type APIResult struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeAPIResponse decodes the response envelope and checks its status field.
func DecodeAPIResponse(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) APIResult {
	t.Helper()
	var response APIResult
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	if response.Status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s' (message %q)", expectedStatus, response.Status, response.Message)
	}
	return response
}

// NewJSONRequest creates a request with body marshaled as JSON. A string body is sent verbatim.
func NewJSONRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		data = MustMarshalJSON(t, b)
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// SeedConversation stores contents as alternating user and assistant turns.
func SeedConversation(t testing.TB, st store.Store, conversationID int64, contents ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		m := models.StoredMessage{
			ConversationID: conversationID,
			Role:           role,
			Content:        c,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := st.AddMessage(m); err != nil {
			t.Fatalf("failed to seed message %d: %v", i, err)
		}
	}
}

// AssertMessageCount validates the number of stored messages for a conversation.
func AssertMessageCount(t testing.TB, st store.Store, conversationID int64, expected int, context string) []models.StoredMessage {
	t.Helper()
	msgs, err := st.GetMessages(conversationID, 0)
	if err != nil {
		t.Fatalf("%s: failed to get messages: %v", context, err)
	}
	if len(msgs) != expected {
		t.Errorf("%s: expected %d messages, got %d", context, expected, len(msgs))
	}
	return msgs
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
