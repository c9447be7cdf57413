// Package ai implements the AI fixer: an OpenAI-compatible chat completions
// client and a fixer that asks it to rewrite files with issues.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/metrics"
	"github.com/exploopio/ohmybug/pkg/retry"
)

const (
	// DefaultEndpoint is the GLM chat completions endpoint.
	DefaultEndpoint = "https://open.bigmodel.cn/api/paas/v4/chat/completions"

	// DefaultModel is the code model used on DefaultEndpoint.
	DefaultModel = "codegeex-4"

	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 4096

	// DefaultRequestsPerMinute keeps a fix run under typical free tier limits.
	DefaultRequestsPerMinute = 30

	maxErrorBody = 500
)

const systemPrompt = "You are a code quality fixer. Given a lint/build issue and the file content, " +
	"return ONLY the corrected file content. No explanations, no markdown fences, " +
	"just the complete corrected file."

// Config configures the client.
type Config struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	APIKey      string        `yaml:"api_key" json:"-"`
	Model       string        `yaml:"model" json:"model"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`

	// RequestsPerMinute limits outgoing requests (0 = DefaultRequestsPerMinute,
	// negative = unlimited).
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// MaxAttempts is the number of tries per request on 429 and 5xx.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// DefaultConfig returns the GLM defaults for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		APIKey:            apiKey,
		Model:             DefaultModel,
		Temperature:       0.1,
		MaxTokens:         DefaultMaxTokens,
		Timeout:           DefaultTimeout,
		RequestsPerMinute: DefaultRequestsPerMinute,
		MaxAttempts:       retry.DefaultMaxAttempts,
	}
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    *retry.BackoffConfig
	metrics    metrics.Collector
	logger     core.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBackoff sets the delays between retries.
func WithBackoff(b *retry.BackoffConfig) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithClientMetrics records request counts and durations.
func WithClientMetrics(m metrics.Collector) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClientLogger sets the diagnostic logger.
func WithClientLogger(l core.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.ErrMissingAPIKey
	}
	def := DefaultConfig(cfg.APIKey)
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		backoff:    retry.DefaultBackoffConfig(),
		metrics:    &metrics.NopCollector{},
		logger:     &core.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// =============================================================================
// Wire types
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// =============================================================================
// Requests
// =============================================================================

// RequestFix asks the model to fix issue in a file and returns the complete
// corrected content with any code fence removed. related lists the file's
// other issues; the model is told about them but asked to fix issue first.
func (c *Client) RequestFix(ctx context.Context, issue core.Issue, content string, related ...core.Issue) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(issue, content, related...)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", errors.E(errors.KindInternal, "ai.RequestFix", "encode request", err)
	}

	var reply string
	policy := retry.Policy{
		MaxAttempts: c.cfg.MaxAttempts,
		Backoff:     c.backoff,
		Retryable:   errors.IsRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("AI request failed (attempt %d/%d), retrying in %v: %v", attempt, c.cfg.MaxAttempts, delay, err)
		},
	}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		reply, err = c.send(ctx, body)
		return err
	})
	if err != nil {
		return "", err
	}

	fixed := StripCodeFence(reply)
	if fixed != "" && strings.HasSuffix(content, "\n") && !strings.HasSuffix(fixed, "\n") {
		fixed += "\n"
	}
	return fixed, nil
}

func (c *Client) send(ctx context.Context, body []byte) (reply string, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timer := metrics.NewTimer(c.metrics, metrics.AIRequestDuration.Name)
	defer func() {
		timer.ObserveDuration()
		c.metrics.CounterInc(metrics.AIRequestsTotal.Name, metrics.StatusLabel(err))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.E(errors.KindInvalidInput, "ai.send", "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.E(errors.KindNetwork, "ai.send", "http request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.E(errors.KindNetwork, "ai.send", "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &errors.APIError{
			StatusCode: resp.StatusCode,
			Message:    core.Truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.E(errors.KindServer, "ai.send", "parse response", err)
	}
	if parsed.Error != nil {
		return "", &errors.APIError{StatusCode: resp.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", errors.E(errors.KindServer, "ai.send", "response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// BuildPrompt renders the user message for one file.
func BuildPrompt(issue core.Issue, content string, related ...core.Issue) string {
	var b strings.Builder
	b.WriteString("Fix this issue in the file:\n\n")
	fmt.Fprintf(&b, "Rule: %s\n", issue.Rule)
	fmt.Fprintf(&b, "Message: %s\n", issue.Message)
	fmt.Fprintf(&b, "File: %s\n", issue.FilePath)
	if issue.Line != nil {
		fmt.Fprintf(&b, "Line: %d\n", *issue.Line)
	}

	others := make([]core.Issue, 0, len(related))
	for _, r := range related {
		if r.ID != issue.ID {
			others = append(others, r)
		}
	}
	if len(others) > 0 {
		b.WriteString("\nAlso fix these issues in the same file if you can:\n")
		for _, r := range others {
			if r.Line != nil {
				fmt.Fprintf(&b, "- [%s] line %d: %s\n", r.Rule, *r.Line, r.Message)
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", r.Rule, r.Message)
			}
		}
	}

	b.WriteString("\nFile content:\n")
	b.WriteString(content)
	return b.String()
}

// StripCodeFence removes a surrounding ``` fence (with optional language
// tag) that models add despite being told not to.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimRight(trimmed, " \t\r\n")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimRight(trimmed, " \t\r\n") + "\n"
}
