// Package classifier maps a user message to a Fundi category. Ordered keyword rules run first;
// anything they do not settle goes to a remote classifier, whose results are cached.
package classifier

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fundamenta/fundi/internal/models"
)

// DefaultCacheSize bounds the remote result cache.
const DefaultCacheSize = 1024

// preferredConfidence is reported when the caller's preferred category is used.
const preferredConfidence = 0.8

// Remote classifies a message with a remote model.
type Remote interface {
	ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error)
}

// Classifier is safe for concurrent use.
type Classifier struct {
	remote Remote
	cache  *lru.Cache[string, models.CategoryResult]
}

// Option configures a Classifier.
type Option func(*classifierOpts)

type classifierOpts struct {
	cacheSize int
}

// WithCacheSize sets the remote result cache size. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(o *classifierOpts) {
		o.cacheSize = n
	}
}

// New creates a Classifier. remote may be nil, in which case messages not settled by keyword
// rules classify as general.
func New(remote Remote, opts ...Option) *Classifier {
	cfg := classifierOpts{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Classifier{remote: remote}
	if cfg.cacheSize > 0 {
		cache, err := lru.New[string, models.CategoryResult](cfg.cacheSize)
		if err != nil {
			slog.Warn("classifier.New: cache disabled", "error", err)
		} else {
			c.cache = cache
		}
	}
	return c
}

// Classify returns the category for message. It never fails: remote errors yield general/0.5.
func (c *Classifier) Classify(ctx context.Context, message, preferredCategory string) models.CategoryResult {
	if rule, ok := MatchRules(message); ok {
		slog.Debug("Classifier.Classify: keyword rule matched", "rule", rule.Name, "category", rule.Category)
		return models.CategoryResult{Category: rule.Category, Confidence: rule.Confidence}
	}

	if preferredCategory != "" && models.IsValidCategory(models.Category(preferredCategory)) {
		return models.CategoryResult{Category: models.Category(preferredCategory), Confidence: preferredConfidence}
	}

	if c.remote == nil {
		return models.DefaultCategoryResult()
	}

	key := Normalize(message)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			slog.Debug("Classifier.Classify: cache hit", "category", cached.Category)
			return cached
		}
	}

	result, err := c.remote.ClassifyCategory(ctx, message, "")
	if err != nil {
		slog.Warn("Classifier.Classify: remote classification failed", "error", err)
		return models.DefaultCategoryResult()
	}
	result = sanitize(result)
	if c.cache != nil {
		c.cache.Add(key, result)
	}
	return result
}

// sanitize clamps confidence and collapses unknown or very weak categories to general.
func sanitize(r models.CategoryResult) models.CategoryResult {
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if !models.IsValidCategory(r.Category) {
		return models.DefaultCategoryResult()
	}
	if r.Confidence < SecondPassFloor {
		r.Category = models.CategoryGeneral
	}
	return r
}
