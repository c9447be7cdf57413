package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/metrics"
	"github.com/exploopio/ohmybug/pkg/retry"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

func reply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func testClient(t *testing.T, url string, opts ...ClientOption) *Client {
	t.Helper()
	cfg := DefaultConfig("test-key")
	cfg.Endpoint = url
	cfg.RequestsPerMinute = -1
	cfg.MaxAttempts = 3
	opts = append([]ClientOption{WithBackoff(&retry.BackoffConfig{Strategy: retry.BackoffConstant, BaseInterval: time.Millisecond})}, opts...)
	c, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func sampleIssue() core.Issue {
	return core.NewIssue("ESLint", "no-unused-vars", "'x' is unused", severity.High, "/proj/a.js", 3, 1)
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}); err != errors.ErrMissingAPIKey {
		t.Errorf("NewClient() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if c.cfg.Endpoint != DefaultEndpoint || c.Model() != DefaultModel || c.cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
}

func TestRequestFix(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(reply("```js\nconst y = 1;\n```")))
	}))
	defer srv.Close()

	collector := metrics.NewInMemoryCollector()
	c := testClient(t, srv.URL, WithClientMetrics(collector))

	fixed, err := c.RequestFix(context.Background(), sampleIssue(), "const x = 1;\nconst y = 1;\n")
	if err != nil {
		t.Fatalf("RequestFix() error = %v", err)
	}
	if fixed != "const y = 1;\n" {
		t.Errorf("fixed = %q", fixed)
	}
	if auth != "Bearer test-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != DefaultModel || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
	if !strings.Contains(got.Messages[1].Content, "Rule: no-unused-vars") || !strings.Contains(got.Messages[1].Content, "Line: 3") {
		t.Errorf("prompt = %q", got.Messages[1].Content)
	}
	if collector.GetCounter(metrics.AIRequestsTotal.Name, metrics.StatusSuccess) != 1 {
		t.Error("successful request should be counted")
	}
}

func TestRequestFix_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(reply("fixed")))
		}
	}))
	defer srv.Close()

	fixed, err := testClient(t, srv.URL).RequestFix(context.Background(), sampleIssue(), "broken")
	if err != nil {
		t.Fatalf("RequestFix() error = %v", err)
	}
	if fixed != "fixed" || calls.Load() != 3 {
		t.Errorf("fixed = %q after %d calls", fixed, calls.Load())
	}
}

func TestRequestFix_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).RequestFix(context.Background(), sampleIssue(), "x")
	apiErr, ok := errors.IsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("error = %v, want 401 APIError", err)
	}
	if !strings.Contains(apiErr.Message, "invalid key") {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRequestFix_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).RequestFix(context.Background(), sampleIssue(), "x")
	if errors.GetKind(err) != errors.KindServer {
		t.Errorf("error = %v, want KindServer", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "let a = 1\n", "let a = 1\n"},
		{"fenced", "```\nlet a = 1\n```", "let a = 1\n"},
		{"language tag", "```swift\nlet a = 1\nlet b = 2\n```\n", "let a = 1\nlet b = 2\n"},
		{"leading space", "  ```go\npackage x\n```", "package x\n"},
		{"only fence", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPrompt_Related(t *testing.T) {
	primary := sampleIssue()
	other := core.NewIssue("ESLint", "semi", "Missing semicolon.", severity.Medium, "/proj/a.js", 0, 0)

	prompt := BuildPrompt(primary, "code", primary, other)
	if strings.Count(prompt, "no-unused-vars") != 1 {
		t.Error("primary issue should not be repeated in the related list")
	}
	if !strings.Contains(prompt, "- [semi] Missing semicolon.") {
		t.Errorf("prompt = %q", prompt)
	}
	if !strings.HasSuffix(prompt, "File content:\ncode") {
		t.Errorf("prompt should end with the file content: %q", prompt)
	}
}
