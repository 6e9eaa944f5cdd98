// Package orchestrator coordinates Fundi's primary and secondary providers: failure tracking
// with a cooldown gate, and a staggered race that takes whichever provider answers first.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fundamenta/fundi/internal/metrics"
	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/provider"
)

// Default policy values.
const (
	DefaultMaxFailures        = 3
	DefaultCooldownPeriod     = 60 * time.Second
	DefaultFallbackStartDelay = 8 * time.Second
	DefaultPrimaryTimeout     = 15 * time.Second
	DefaultClassifyDelay      = 3 * time.Second
	DefaultEmotionDelay       = 2 * time.Second
)

// Operation names used for logs, metrics and stats.
const (
	OpGenerate = "generate"
	OpClassify = "classify"
	OpEmotion  = "emotion"
)

// localProvider marks responses built from an adapter's local fallback.
const localProvider = "local"

// Config holds the orchestrator's timing and failure policy.
type Config struct {
	MaxFailures        int
	CooldownPeriod     time.Duration
	FallbackStartDelay time.Duration
	PrimaryTimeout     time.Duration
	ClassifyDelay      time.Duration
	EmotionDelay       time.Duration
	ResetPolicy        ResetPolicy
	Now                func() time.Time
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MaxFailures:        DefaultMaxFailures,
		CooldownPeriod:     DefaultCooldownPeriod,
		FallbackStartDelay: DefaultFallbackStartDelay,
		PrimaryTimeout:     DefaultPrimaryTimeout,
		ClassifyDelay:      DefaultClassifyDelay,
		EmotionDelay:       DefaultEmotionDelay,
		ResetPolicy:        ResetStale,
		Now:                time.Now,
	}
}

// Option configures an Orchestrator.
type Option func(*Config)

// WithMaxFailures sets how many failures open the fallback gate.
func WithMaxFailures(n int) Option {
	return func(c *Config) {
		c.MaxFailures = n
	}
}

// WithCooldownPeriod sets the per-failure cooldown.
func WithCooldownPeriod(d time.Duration) Option {
	return func(c *Config) {
		c.CooldownPeriod = d
	}
}

// WithFallbackStartDelay sets how long the primary runs alone before the secondary starts.
func WithFallbackStartDelay(d time.Duration) Option {
	return func(c *Config) {
		c.FallbackStartDelay = d
	}
}

// WithPrimaryTimeout sets the soft timeout after which a slow primary counts as a failure.
func WithPrimaryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.PrimaryTimeout = d
	}
}

// WithClassifyDelay sets the stagger delay for category classification.
func WithClassifyDelay(d time.Duration) Option {
	return func(c *Config) {
		c.ClassifyDelay = d
	}
}

// WithEmotionDelay sets the stagger delay for emotion analysis.
func WithEmotionDelay(d time.Duration) Option {
	return func(c *Config) {
		c.EmotionDelay = d
	}
}

// WithAlwaysReset clears failure state before every request instead of only stale state.
func WithAlwaysReset(enabled bool) Option {
	return func(c *Config) {
		if enabled {
			c.ResetPolicy = ResetAlways
		} else {
			c.ResetPolicy = ResetStale
		}
	}
}

// WithClock replaces time.Now for failure bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// Orchestrator is safe for concurrent use. FailureState is the only state shared between
// requests.
type Orchestrator struct {
	cfg       Config
	primary   provider.Provider
	secondary provider.Provider
	failures  *FailureState

	statsMu sync.Mutex
	stats   map[string]*ProviderStats
}

// New creates an Orchestrator over a primary and a secondary provider.
func New(primary, secondary provider.Provider, opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	slog.Debug("orchestrator.New: created", "primary", primary.Name(), "secondary", secondary.Name(),
		"maxFailures", cfg.MaxFailures, "cooldown", cfg.CooldownPeriod, "fallbackStartDelay", cfg.FallbackStartDelay,
		"primaryTimeout", cfg.PrimaryTimeout, "resetPolicy", cfg.ResetPolicy)
	return &Orchestrator{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		failures:  NewFailureState(cfg.MaxFailures, cfg.CooldownPeriod, cfg.Now),
		stats:     make(map[string]*ProviderStats),
	}
}

// Failures exposes the failure state for operator controls.
func (o *Orchestrator) Failures() *FailureState {
	return o.failures
}

// SetForcedFallback forces or releases secondary-only operation.
func (o *Orchestrator) SetForcedFallback(enabled bool) {
	slog.Info("Orchestrator.SetForcedFallback", "enabled", enabled)
	o.failures.SetForcedFallback(enabled)
}

// Reset clears all failure state.
func (o *Orchestrator) Reset() {
	slog.Info("Orchestrator.Reset: failure state cleared")
	o.failures.Reset()
}

// GenerateResponse answers message. It never fails: when no provider answers, the best local
// fallback or the generic apology is returned.
func (o *Orchestrator) GenerateResponse(ctx context.Context, message, systemPrompt string, history []models.Message) models.StructuredResponse {
	primaryCall := func(c context.Context) (models.StructuredResponse, error) {
		return o.primary.GenerateResponse(c, message, systemPrompt, history)
	}
	secondaryCall := func(c context.Context) (models.StructuredResponse, error) {
		return o.secondary.GenerateResponse(c, message, systemPrompt, history)
	}

	if o.failures.BeginRequest(o.cfg.ResetPolicy) {
		slog.Info("Orchestrator.GenerateResponse: fallback gate open, using secondary only", "provider", o.secondary.Name())
		start := time.Now()
		resp, err := o.callDirect(ctx, o.secondary, secondaryCall)
		o.observe(o.secondary.Name(), OpGenerate, err, time.Since(start))
		if err != nil {
			slog.Warn("Orchestrator.GenerateResponse: secondary failed", "error", err)
			return finalize(resp, localProvider)
		}
		return finalize(resp, o.secondary.Name())
	}

	// recorded enforces at most one failure per request.
	recorded := false
	timedOut := false
	recordFailure := func() {
		if !recorded {
			recorded = true
			o.failures.RecordFailure()
		}
	}

	resp, w, failed, err := race(ctx, o, raceSpec{
		op:        OpGenerate,
		primary:   o.primary.Name(),
		secondary: o.secondary.Name(),
		delay:     o.cfg.FallbackStartDelay,
		timeout:   o.cfg.PrimaryTimeout,
		onPrimaryTimeout: func() {
			timedOut = true
			recordFailure()
		},
		onPrimaryFailure: func(error) { recordFailure() },
		onWin: func(w winner) {
			switch {
			case w == winnerSecondary:
				recordFailure()
			case !timedOut:
				// a late primary success does not undo the timeout failure
				o.failures.RecordSuccess()
			}
		},
	}, primaryCall, secondaryCall)

	switch w {
	case winnerPrimary:
		o.countWin(o.primary.Name())
		return finalize(resp, o.primary.Name())
	case winnerSecondary:
		o.countWin(o.secondary.Name())
		return finalize(resp, o.secondary.Name())
	}

	if err != nil {
		slog.Warn("Orchestrator.GenerateResponse: request ended before a provider answered", "error", err)
		return finalize(models.ApologyResponse(), localProvider)
	}
	slog.Warn("Orchestrator.GenerateResponse: all providers failed")
	return finalize(bestFallback(failed), localProvider)
}

// callDirect runs one provider call with panic recovery.
func (o *Orchestrator) callDirect(ctx context.Context, p provider.Provider, call func(context.Context) (models.StructuredResponse, error)) (resp models.StructuredResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Orchestrator.callDirect: provider panic recovered", "provider", p.Name(), "panic", rec)
			resp, err = models.StructuredResponse{}, fmt.Errorf("%w: %v", ErrProviderPanic, rec)
		}
	}()
	return call(ctx)
}

// bestFallback prefers the secondary's local fallback, then the primary's.
func bestFallback(failed []result[models.StructuredResponse]) models.StructuredResponse {
	for _, preferPrimary := range []bool{false, true} {
		for _, f := range failed {
			if f.primary == preferPrimary && f.val.Response != "" {
				return f.val
			}
		}
	}
	return models.ApologyResponse()
}

// finalize guarantees the response invariants and stamps the answering provider.
func finalize(resp models.StructuredResponse, providerName string) models.StructuredResponse {
	if resp.Response == "" {
		resp = models.ApologyResponse()
		providerName = localProvider
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []models.Suggestion{}
	}
	if resp.FollowUpQuestions == nil {
		resp.FollowUpQuestions = []string{}
	}
	resp.Provider = providerName
	return resp
}

// ClassifyCategory races the providers' classifiers. On total failure it returns general/0.5
// together with an error.
func (o *Orchestrator) ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error) {
	res, err := raceAux(ctx, o, OpClassify, o.cfg.ClassifyDelay,
		func(c context.Context) (models.CategoryResult, error) {
			return o.primary.ClassifyCategory(c, message, preferredCategory)
		},
		func(c context.Context) (models.CategoryResult, error) {
			return o.secondary.ClassifyCategory(c, message, preferredCategory)
		})
	if err != nil {
		return models.DefaultCategoryResult(), err
	}
	return res, nil
}

// AnalyzeEmotion races the providers' emotion analysis. On total failure it returns
// neutral/0.5 together with an error.
func (o *Orchestrator) AnalyzeEmotion(ctx context.Context, message string) (models.EmotionResult, error) {
	res, err := raceAux(ctx, o, OpEmotion, o.cfg.EmotionDelay,
		func(c context.Context) (models.EmotionResult, error) {
			return o.primary.AnalyzeEmotion(c, message)
		},
		func(c context.Context) (models.EmotionResult, error) {
			return o.secondary.AnalyzeEmotion(c, message)
		})
	if err != nil {
		return models.NeutralEmotion(), err
	}
	return res, nil
}

// ErrAllProvidersFailed is returned by the auxiliary operations on total failure.
var ErrAllProvidersFailed = errors.New("all providers failed")

// raceAux runs classification or emotion analysis. These calls do not touch FailureState but
// respect its gate.
func raceAux[T any](ctx context.Context, o *Orchestrator, op string, delay time.Duration, primary, secondary func(context.Context) (T, error)) (T, error) {
	var zero T
	if o.failures.ShouldUseFallback() {
		start := time.Now()
		v, err := secondary(ctx)
		o.observe(o.secondary.Name(), op, err, time.Since(start))
		if err != nil {
			return zero, fmt.Errorf("%s: %w: %v", op, ErrAllProvidersFailed, err)
		}
		return v, nil
	}

	v, w, failed, err := race(ctx, o, raceSpec{
		op:        op,
		primary:   o.primary.Name(),
		secondary: o.secondary.Name(),
		delay:     delay,
	}, primary, secondary)
	if w != winnerNone {
		return v, nil
	}
	if err != nil {
		return zero, err
	}
	errs := make([]any, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f.err)
	}
	return zero, fmt.Errorf("%s: %w: %v", op, ErrAllProvidersFailed, errs)
}

// ProviderStats counts one provider's calls across all operations.
type ProviderStats struct {
	Provider string `json:"provider"`
	Calls    int64  `json:"calls"`
	Failures int64  `json:"failures"`
	Wins     int64  `json:"wins"`
}

func (o *Orchestrator) observe(name, op string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ProviderCalls.WithLabelValues(name, op, outcome).Inc()
	metrics.ProviderLatency.WithLabelValues(name, op).Observe(elapsed.Seconds())

	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	s := o.statsLocked(name)
	s.Calls++
	if err != nil {
		s.Failures++
	}
}

func (o *Orchestrator) countWin(name string) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.statsLocked(name).Wins++
}

func (o *Orchestrator) statsLocked(name string) *ProviderStats {
	s, ok := o.stats[name]
	if !ok {
		s = &ProviderStats{Provider: name}
		o.stats[name] = s
	}
	return s
}

// Stats returns a copy of the per-provider counters, sorted by provider name.
func (o *Orchestrator) Stats() []ProviderStats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	out := make([]ProviderStats, 0, len(o.stats))
	for _, s := range o.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
