package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/store"
)

// recordingTB captures failures instead of failing the enclosing test.
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...interface{}) { r.failed = true }

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingTB{TB: t}
			AssertHTTPStatus(rec, tt.expected, tt.actual, "test context")
			if rec.failed != tt.shouldFail {
				t.Errorf("expected failure=%v, got %v", tt.shouldFail, rec.failed)
			}
		})
	}
}

func TestDecodeAPIResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.Write(MustMarshalJSON(t, models.Success(map[string]int{"n": 1})))

	res := DecodeAPIResponse(t, rr, models.APIStatusOK)
	var got map[string]int
	MustUnmarshalJSON(t, res.Result, &got)
	if got["n"] != 1 {
		t.Errorf("unexpected result %v", got)
	}

	rr = httptest.NewRecorder()
	rr.Body.Write(MustMarshalJSON(t, models.Error("nope")))
	rec := &recordingTB{TB: t}
	if DecodeAPIResponse(rec, rr, models.APIStatusOK); !rec.failed {
		t.Error("expected a status mismatch to be reported")
	}
}

func TestNewJSONRequest(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPost, "/fundi/chat", models.ChatRequest{Message: "hi"})
	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"message":"hi","conversationId":0}` {
		t.Errorf("unexpected body %s", body)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Error("missing content type")
	}

	req = NewJSONRequest(t, http.MethodPost, "/x", `{"raw":`)
	body, _ = io.ReadAll(req.Body)
	if string(body) != `{"raw":` {
		t.Errorf("string bodies should be verbatim, got %s", body)
	}
}

func TestSeedConversation(t *testing.T) {
	st := store.NewInMemoryStore()
	SeedConversation(t, st, 1, "question", "answer", "follow-up")

	msgs := AssertMessageCount(t, st, 1, 3, "seeded")
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant || msgs[2].Role != models.RoleUser {
		t.Errorf("roles should alternate, got %+v", msgs)
	}
	AssertMessageCount(t, st, 2, 0, "other conversation")
}
