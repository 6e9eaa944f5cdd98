package provider

import (
	"strings"
	"testing"
)

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"hi", true},
		{"Hi!", true},
		{"  hello  ", true},
		{"hey there", true},
		{"good morning fundi", true},
		{"ok, hello", true},
		{"How are you?", true},
		{"what’s up", true},
		{"hey! can you help me plan a budget for next month?", true},
		{"hello, I need help writing a cover letter for a job", false},
		{"this is a question about shipping", false},
		{"yogurt recipes", false},
		{"which bank has the highest interest rate", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGreeting(tt.message); got != tt.want {
			t.Errorf("IsGreeting(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestGreetingResponse(t *testing.T) {
	resp := GreetingResponse()
	found := false
	for _, tpl := range GreetingTemplates {
		if resp.Response == tpl {
			found = true
		}
	}
	if !found {
		t.Errorf("response %q is not a greeting template", resp.Response)
	}
	if resp.Sentiment != "friendly" {
		t.Errorf("expected friendly sentiment, got %q", resp.Sentiment)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0].Path != "/" {
		t.Errorf("expected a / suggestion, got %+v", resp.Suggestions)
	}
}

func TestLocalFallback(t *testing.T) {
	tests := []struct {
		message  string
		wantPath string
		contains string
	}{
		{"How do I get a mortgage?", "/finance/mortgage", "down payment"},
		{"help me make a budget", "/finance/budget", "50/30/20"},
		{"review my resume please", "/career/resume", "one page"},
		{"tell me a joke", "/", "sorry"},
	}
	for _, tt := range tests {
		resp := LocalFallback(tt.message)
		if resp.Response == "" {
			t.Fatalf("fallback for %q is empty", tt.message)
		}
		if !strings.Contains(resp.Response, tt.contains) {
			t.Errorf("fallback for %q = %q, want it to contain %q", tt.message, resp.Response, tt.contains)
		}
		if len(resp.Suggestions) == 0 || resp.Suggestions[0].Path != tt.wantPath {
			t.Errorf("fallback for %q suggestions = %+v", tt.message, resp.Suggestions)
		}
	}
}
