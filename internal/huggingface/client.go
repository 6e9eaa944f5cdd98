// Package huggingface is a small client for the hosted Hugging Face Inference API, covering
// the text generation, zero-shot classification and emotion classification tasks Fundi uses.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Default endpoints and models.
const (
	DefaultBaseURL         = "https://api-inference.huggingface.co"
	DefaultGenerationModel = "HuggingFaceH4/zephyr-7b-beta"
	DefaultZeroShotModel   = "facebook/bart-large-mnli"
	DefaultEmotionModel    = "j-hartmann/emotion-english-distilroberta-base"
	DefaultTimeout         = 20 * time.Second
	DefaultMaxNewTokens    = 400
)

// emotionTopK asks for every label of the emotion model.
const emotionTopK = 7

// ErrUnexpectedResponse is returned when a response body does not have the expected shape.
var ErrUnexpectedResponse = errors.New("unexpected inference response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference API returned status %d: %s", e.StatusCode, e.Body)
}

// httpDoer is satisfied by *http.Client.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Label is one scored classification label.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey          string
	BaseURL         string
	GenerationModel string
	ZeroShotModel   string
	EmotionModel    string
	MaxNewTokens    int
	HTTPClient      httpDoer
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBaseURL overrides the inference endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithGenerationModel sets the text generation model.
func WithGenerationModel(model string) Option {
	return func(o *Opts) {
		o.GenerationModel = model
	}
}

// WithMaxNewTokens caps the generated text length.
func WithMaxNewTokens(n int) Option {
	return func(o *Opts) {
		o.MaxNewTokens = n
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c httpDoer) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Client calls the Inference API.
type Client struct {
	apiKey          string
	baseURL         string
	generationModel string
	zeroShotModel   string
	emotionModel    string
	maxNewTokens    int
	httpClient      httpDoer
}

// NewClient creates a client. Without an API key requests are sent anonymously.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		BaseURL:         DefaultBaseURL,
		GenerationModel: DefaultGenerationModel,
		ZeroShotModel:   DefaultZeroShotModel,
		EmotionModel:    DefaultEmotionModel,
		MaxNewTokens:    DefaultMaxNewTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.APIKey == "" {
		slog.Warn("huggingface.NewClient: no API key configured, requests will be rate limited")
	}
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		generationModel: cfg.GenerationModel,
		zeroShotModel:   cfg.ZeroShotModel,
		emotionModel:    cfg.EmotionModel,
		maxNewTokens:    cfg.MaxNewTokens,
		httpClient:      cfg.HTTPClient,
	}
}

// GenerateText runs the generation model on prompt and returns only the new text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"inputs": prompt,
		"parameters": map[string]interface{}{
			"max_new_tokens":   c.maxNewTokens,
			"return_full_text": false,
			"temperature":      0.7,
		},
		"options": map[string]interface{}{"wait_for_model": true},
	}
	raw, err := c.post(ctx, c.generationModel, body)
	if err != nil {
		return "", err
	}
	// [{"generated_text": "..."}] or {"generated_text": "..."}
	text := gjson.GetBytes(raw, "0.generated_text")
	if !text.Exists() {
		text = gjson.GetBytes(raw, "generated_text")
	}
	if !text.Exists() {
		return "", fmt.Errorf("%w: no generated_text", ErrUnexpectedResponse)
	}
	return strings.TrimSpace(text.String()), nil
}

// ZeroShot classifies text against labels. Results are sorted by descending score.
func (c *Client) ZeroShot(ctx context.Context, text string, labels []string) ([]Label, error) {
	body := map[string]interface{}{
		"inputs": text,
		"parameters": map[string]interface{}{
			"candidate_labels": labels,
			"multi_label":      false,
		},
		"options": map[string]interface{}{"wait_for_model": true},
	}
	raw, err := c.post(ctx, c.zeroShotModel, body)
	if err != nil {
		return nil, err
	}

	var out []Label
	doc := gjson.ParseBytes(raw)
	if doc.Get("labels").IsArray() {
		// {"sequence": ..., "labels": [...], "scores": [...]}
		scores := doc.Get("scores").Array()
		for i, l := range doc.Get("labels").Array() {
			if i >= len(scores) {
				break
			}
			out = append(out, Label{Label: l.String(), Score: scores[i].Float()})
		}
	} else {
		out = parseLabelList(doc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrUnexpectedResponse)
	}
	sortLabels(out)
	return out, nil
}

// ClassifyEmotion scores text with the emotion model. Results are sorted by descending score.
func (c *Client) ClassifyEmotion(ctx context.Context, text string) ([]Label, error) {
	body := map[string]interface{}{
		"inputs":     text,
		"parameters": map[string]interface{}{"top_k": emotionTopK},
		"options":    map[string]interface{}{"wait_for_model": true},
	}
	raw, err := c.post(ctx, c.emotionModel, body)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(raw)
	// Text classification answers [[{label, score}...]] for a single input.
	if doc.Get("0").IsArray() {
		doc = doc.Get("0")
	}
	out := parseLabelList(doc)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no emotions", ErrUnexpectedResponse)
	}
	sortLabels(out)
	return out, nil
}

func parseLabelList(doc gjson.Result) []Label {
	var out []Label
	if !doc.IsArray() {
		return nil
	}
	for _, item := range doc.Array() {
		label := item.Get("label")
		if !label.Exists() {
			continue
		}
		out = append(out, Label{Label: label.String(), Score: item.Get("score").Float()})
	}
	return out
}

func sortLabels(labels []Label) {
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Score > labels[j].Score
	})
}

func (c *Client) post(ctx context.Context, model string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUnexpectedResponse)
	}
	slog.Debug("huggingface.Client.post: response received", "model", model, "status", resp.StatusCode, "elapsed", time.Since(start))
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
