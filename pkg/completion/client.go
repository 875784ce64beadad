package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond
)

// systemPrompt pins the JSON-only contract for schema calls.
const systemPrompt = "You are an assistant that must return only the requested output. No extra text."

// Ensure Client implements the interface.
var _ Service = (*Client)(nil)

// Option customises the client configuration.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL points the client at a different chat-completions endpoint,
// for example a local inference gateway.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithModel selects the model to request.
func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each individual request attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries configures how many times a transient failure is retried and
// the initial backoff, doubled per attempt.
func WithRetries(maxRetries int, baseBackoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseBackoff > 0 {
			c.baseBackoff = baseBackoff
		}
	}
}

// WithRateLimit caps outgoing requests per second to keep external load
// bounded when the builder fans out.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger attaches a logger for retry and degradation events. Nil keeps
// the client silent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is an HTTP implementation of Service against an OpenAI-style
// chat-completions API. The credential is supplied to the constructor, never
// read from ambient state.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
	sanitizer   *bluemonday.Policy
}

// NewClient constructs a Client. The API key is required; everything else
// has defaults.
func NewClient(apiKey string, options ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("completion: api key is required")
	}

	c := &Client{
		httpClient:  &http.Client{},
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		model:       defaultModel,
		timeout:     defaultTimeout,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		sanitizer:   bluemonday.StrictPolicy(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

// SuggestSchema asks the service to classify one placeholder and propose
// dependency rules.
func (c *Client) SuggestSchema(ctx context.Context, req SchemaRequest) (SchemaSuggestion, error) {
	prompt, err := renderPrompt("schema.tpl", pongo2.Context{
		"placeholder": req.Placeholder,
		"context":     req.Context,
		"known":       req.Known,
	})
	if err != nil {
		return SchemaSuggestion{}, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return SchemaSuggestion{}, err
	}

	var suggestion SchemaSuggestion
	if err := decodeJSONReply(raw, &suggestion); err != nil {
		return SchemaSuggestion{}, err
	}
	suggestion.Label = c.cleanText(suggestion.Label)
	suggestion.Default = c.cleanText(suggestion.Default)
	for i, choice := range suggestion.Choices {
		suggestion.Choices[i] = c.cleanText(choice)
	}
	return suggestion, nil
}

// SuggestFields asks the service which placeholders the document is missing.
func (c *Client) SuggestFields(ctx context.Context, req FieldsRequest) ([]SuggestedField, error) {
	prompt, err := renderPrompt("fields.tpl", pongo2.Context{
		"context": req.Context,
		"known":   req.Known,
	})
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var fields []SuggestedField
	if err := decodeJSONReply(raw, &fields); err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i].Name = strings.TrimSpace(fields[i].Name)
		fields[i].Label = c.cleanText(fields[i].Label)
	}
	return fields, nil
}

// GenerateText rewrites a raw value into expanded text. Callers pair it with
// FallbackText so failures degrade to the verbatim value.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	prompt, err := renderPrompt("rewrite.tpl", pongo2.Context{
		"field":   req.Field,
		"value":   req.Value,
		"context": req.Context,
	})
	if err != nil {
		return "", err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return c.cleanText(raw), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete issues one chat completion with the retry/backoff policy applied.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion: encode request: %w", err)
	}

	var lastErr error
	var lastRetryable bool
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		reply, retryable, err := c.attempt(ctx, payload)
		if err == nil {
			return reply, nil
		}
		lastErr, lastRetryable = err, retryable

		if ctx.Err() != nil || !retryable {
			break
		}
		if attempt < c.maxRetries {
			wait := c.baseBackoff * (1 << uint(attempt))
			if c.logger != nil {
				c.logger.WarnContext(ctx, "retrying completion call",
					"attempt", attempt+1,
					"max_retries", c.maxRetries,
					"backoff_ms", wait.Milliseconds(),
					"error", err)
			}
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(wait):
			}
		}
	}
	// Only transport exhaustion reads as "unavailable"; a malformed reply or
	// a rejected request keeps its own identity so errors.Is still matches.
	if lastRetryable {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return "", lastErr
}

// attempt performs a single HTTP round trip. The second return reports
// whether the failure is worth retrying.
func (c *Client) attempt(ctx context.Context, payload []byte) (string, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("completion: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, fmt.Errorf("completion: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("completion: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

// decodeJSONReply strips markdown code fences the model may wrap its JSON in
// and unmarshals into out.
func decodeJSONReply(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if cleaned == "" {
		return fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// cleanText strips any markup the model smuggled into a plain-text slot.
func (c *Client) cleanText(raw string) string {
	sanitized := c.sanitizer.Sanitize(strings.TrimSpace(raw))
	return strings.TrimSpace(html.UnescapeString(sanitized))
}
