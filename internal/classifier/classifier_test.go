package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fundamenta/fundi/internal/huggingface"
	"github.com/fundamenta/fundi/internal/models"
)

type mockRemote struct {
	mu     sync.Mutex
	result models.CategoryResult
	err    error
	calls  int
}

func (m *mockRemote) ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func TestClassify_KeywordRules(t *testing.T) {
	c := New(&mockRemote{err: errors.New("remote should not be needed")})
	tests := []struct {
		name      string
		message   string
		preferred string
		want      models.Category
		conf      float64
	}{
		{"financial education", "I want to improve my financial literacy", "", models.CategoryFinance, 0.95},
		{"learn finance", "Where can I learn about finance?", "career", models.CategoryFinance, 0.95},
		{"finance education beats preference", "financial education for teens", "cooking", models.CategoryFinance, 0.95},
		{"stress beats finance", "I'm so stressed about my finances", "", models.CategoryWellness, 0.9},
		{"mental health beats preference", "I feel overwhelmed lately", "fitness", models.CategoryWellness, 0.9},
		{"career", "Can you help with my resume?", "", models.CategoryCareer, 0.85},
		{"career before home repair", "how do I fix the photo on my resume", "", models.CategoryCareer, 0.85},
		{"home repair", "my kitchen faucet has a leak", "", models.CategoryHomeMaintenance, 0.85},
		{"camera repair", "how do I fix my camera", "", models.CategoryHomeMaintenance, 0.85},
		{"broken appliance", "my dishwasher is broken", "", models.CategoryHomeMaintenance, 0.85},
		{"fix budget is not a repair", "Can you help me fix my budget?", "finance", models.CategoryFinance, 0.8},
		{"fix credit score is not a repair", "How do I fix my credit score?", "finance", models.CategoryFinance, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.message, tt.preferred)
			if got.Category != tt.want || got.Confidence != tt.conf {
				t.Errorf("Classify(%q) = %+v, want {%s %v}", tt.message, got, tt.want, tt.conf)
			}
		})
	}
}

func TestHomeMaintenanceExcludesJobTerms(t *testing.T) {
	for _, rule := range Rules[3:] {
		if rule.Category != models.CategoryHomeMaintenance {
			t.Fatalf("expected home maintenance rules after index 3, got %s", rule.Name)
		}
		if rule.Match(Normalize("repair the broken cabinet link in my cv")) {
			t.Errorf("%s must not match messages mentioning a cv", rule.Name)
		}
	}
	if !Rules[4].Match(Normalize("repair the broken cabinet")) {
		t.Error("expected repair of a household object to match")
	}
}

func TestRepairVerbsNeedHouseholdObject(t *testing.T) {
	messages := []string{
		"Can you help me fix my budget?",
		"How do I fix my credit score?",
		"my savings plan is broken",
		"how do I repair my credit",
	}
	for _, msg := range messages {
		for _, rule := range Rules {
			if rule.Category == models.CategoryHomeMaintenance && rule.Match(Normalize(msg)) {
				t.Errorf("%s matched %q", rule.Name, msg)
			}
		}
	}
}

func TestClassify_FixBudgetWithoutPreference(t *testing.T) {
	remote := &mockRemote{result: models.CategoryResult{Category: models.CategoryFinance, Confidence: 0.7}}
	c := New(remote)
	got := c.Classify(context.Background(), "Can you help me fix my budget?", "")
	if got.Category == models.CategoryHomeMaintenance {
		t.Errorf("budget message routed to home maintenance: %+v", got)
	}
	if remote.calls != 1 {
		t.Errorf("expected remote classification, got %d calls", remote.calls)
	}
}

func TestContainsTerm_ShortTermsNeedBoundaries(t *testing.T) {
	if containsTerm("i like cvs pharmacy", "cv") {
		t.Error("cv should not match inside cvs")
	}
	if !containsTerm("update my cv, please", "cv") {
		t.Error("cv should match as a word")
	}
}

func TestClassify_PreferredCategory(t *testing.T) {
	remote := &mockRemote{}
	c := New(remote)
	got := c.Classify(context.Background(), "what should I make for dinner", "cooking")
	if got.Category != models.CategoryCooking || got.Confidence != 0.8 {
		t.Errorf("unexpected result %+v", got)
	}
	if remote.calls != 0 {
		t.Error("remote should not be called when a preferred category applies")
	}
}

func TestClassify_RemoteAndCache(t *testing.T) {
	remote := &mockRemote{result: models.CategoryResult{Category: models.CategoryCooking, Confidence: 0.7}}
	c := New(remote)

	for i := 0; i < 3; i++ {
		got := c.Classify(context.Background(), "what should I make for  DINNER", "")
		if got.Category != models.CategoryCooking {
			t.Fatalf("unexpected result %+v", got)
		}
	}
	if remote.calls != 1 {
		t.Errorf("expected one remote call, got %d", remote.calls)
	}
}

func TestClassify_RemoteFailure(t *testing.T) {
	remote := &mockRemote{err: errors.New("boom")}
	c := New(remote)
	got := c.Classify(context.Background(), "what should I make for dinner", "")
	if got != models.DefaultCategoryResult() {
		t.Errorf("expected default result, got %+v", got)
	}
	// failures are not cached
	c.Classify(context.Background(), "what should I make for dinner", "")
	if remote.calls != 2 {
		t.Errorf("expected failures to be retried, got %d calls", remote.calls)
	}
}

func TestClassify_SanitizesRemote(t *testing.T) {
	tests := []struct {
		in   models.CategoryResult
		want models.CategoryResult
	}{
		{models.CategoryResult{Category: "gardening", Confidence: 0.9}, models.DefaultCategoryResult()},
		{models.CategoryResult{Category: models.CategoryFitness, Confidence: 0.1}, models.CategoryResult{Category: models.CategoryGeneral, Confidence: 0.1}},
		{models.CategoryResult{Category: models.CategoryFitness, Confidence: 1.4}, models.CategoryResult{Category: models.CategoryFitness, Confidence: 1}},
	}
	for _, tt := range tests {
		c := New(&mockRemote{result: tt.in}, WithCacheSize(0))
		if got := c.Classify(context.Background(), "tell me something", ""); got != tt.want {
			t.Errorf("remote %+v: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestClassify_NoRemote(t *testing.T) {
	c := New(nil)
	if got := c.Classify(context.Background(), "tell me something", ""); got != models.DefaultCategoryResult() {
		t.Errorf("expected default, got %+v", got)
	}
}

type mockZeroShot struct {
	passes [][]huggingface.Label
	errs   []error
	calls  int
	labels [][]string
}

func (m *mockZeroShot) ZeroShot(ctx context.Context, text string, labels []string) ([]huggingface.Label, error) {
	i := m.calls
	m.calls++
	m.labels = append(m.labels, labels)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if i < len(m.passes) {
		return m.passes[i], err
	}
	return nil, err
}

func TestZeroShotClassify(t *testing.T) {
	label := func(c models.Category) string {
		for _, cl := range categoryLabels {
			if cl.Category == c {
				return cl.Label
			}
		}
		t.Fatalf("no label for %s", c)
		return ""
	}

	t.Run("confident first pass", func(t *testing.T) {
		zs := &mockZeroShot{passes: [][]huggingface.Label{{{Label: label(models.CategoryCooking), Score: 0.8}}}}
		got, err := ZeroShotClassify(context.Background(), zs, "m")
		if err != nil || got.Category != models.CategoryCooking || got.Confidence != 0.8 {
			t.Errorf("got %+v, %v", got, err)
		}
		if zs.calls != 1 {
			t.Errorf("expected one pass, got %d", zs.calls)
		}
	})

	t.Run("second pass confirms", func(t *testing.T) {
		zs := &mockZeroShot{passes: [][]huggingface.Label{
			{{Label: label(models.CategoryFitness), Score: 0.4}},
			{{Label: "running", Score: 0.7}},
		}}
		got, err := ZeroShotClassify(context.Background(), zs, "m")
		if err != nil || got.Category != models.CategoryFitness || got.Confidence != 0.7 {
			t.Errorf("got %+v, %v", got, err)
		}
		if len(zs.labels) != 2 || len(zs.labels[1]) != len(subLabels[models.CategoryFitness]) {
			t.Errorf("second pass should use fitness sub-labels, got %v", zs.labels)
		}
	})

	t.Run("second pass collapses", func(t *testing.T) {
		zs := &mockZeroShot{passes: [][]huggingface.Label{
			{{Label: label(models.CategoryFitness), Score: 0.4}},
			{{Label: "running", Score: 0.2}},
		}}
		got, err := ZeroShotClassify(context.Background(), zs, "m")
		if err != nil || got.Category != models.CategoryGeneral {
			t.Errorf("got %+v, %v", got, err)
		}
	})

	t.Run("first pass error", func(t *testing.T) {
		zs := &mockZeroShot{errs: []error{errors.New("down")}}
		if _, err := ZeroShotClassify(context.Background(), zs, "m"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("no labels", func(t *testing.T) {
		zs := &mockZeroShot{passes: [][]huggingface.Label{{}}}
		if _, err := ZeroShotClassify(context.Background(), zs, "m"); !errors.Is(err, ErrNoLabels) {
			t.Errorf("expected ErrNoLabels, got %v", err)
		}
	})
}
