package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, prov Provider, maxRetries int) *Client {
	t.Helper()
	c, err := NewClient(prov, maxRetries, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.backoff = time.Millisecond
	return c
}

func TestClientOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.Temperature != 0.2 || req.MaxTokens != 4000 {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "1|Hello\n" {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"1|Bonjour"}}]}`)
	}))
	defer srv.Close()

	prov := DefaultProviders()[ProviderOpenAI]
	prov.BaseURL = srv.URL + "/v1"
	prov.APIKey = "sk-test"

	got, err := newTestClient(t, prov, 0).Complete(context.Background(), "Translate to French.", "1|Hello\n")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "1|Bonjour" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestClientGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"systemInstruction"`) {
			t.Errorf("missing systemInstruction: %s", body)
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"1|Hallo\n"},{"text":"2|Tschüss"}]}}]}`)
	}))
	defer srv.Close()

	prov := DefaultProviders()[ProviderGoogle]
	prov.BaseURL = srv.URL
	prov.APIKey = "g-key"
	prov.Model = "gemini-2.0-flash"

	got, err := newTestClient(t, prov, 0).Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "1|Hallo\n2|Tschüss" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestClientAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "a-key" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("headers = %v", r.Header)
		}
		var req struct {
			System    string `json:"system"`
			MaxTokens int    `json:"max_tokens"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if req.System != "sys" || req.MaxTokens != 4000 {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"1|Ciao"}]}`)
	}))
	defer srv.Close()

	prov := DefaultProviders()[ProviderAnthropic]
	prov.BaseURL = srv.URL + "/v1"
	prov.APIKey = "a-key"
	prov.Model = "claude-3-5-haiku-latest"

	got, err := newTestClient(t, prov, 0).Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "1|Ciao" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderOllama, Name: "Ollama", BaseURL: srv.URL, Model: "llama3.2"}
	got, err := newTestClient(t, prov, 3).Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || calls.Load() != 3 {
		t.Fatalf("Complete = %q after %d calls", got, calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderCustomOpenAI, Name: "Custom", BaseURL: srv.URL + "/chat/completions", Model: "m"}
	_, err := newTestClient(t, prov, 3).Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestClientRateLimitedWithoutRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderOllama, Name: "Ollama", BaseURL: srv.URL, Model: "m"}
	c := newTestClient(t, prov, -1)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}
	if c.rl.isPaused() {
		t.Fatal("client left paused with no retry pending")
	}
}

func TestClientDebugLogging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	var lines []string
	debugf := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	prov := Provider{ID: ProviderOllama, Name: "Ollama", BaseURL: srv.URL, Model: "m"}
	c, err := NewClient(prov, -1, debugf)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "Ollama attempt 1: POST ") {
		t.Fatalf("debug lines = %q", lines)
	}
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderOllama, Name: "Ollama", BaseURL: srv.URL, Model: "m"}
	c := newTestClient(t, prov, 5)
	c.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Complete(ctx, "s", "u"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestProviderValidate(t *testing.T) {
	defaults := DefaultProviders()

	openai := defaults[ProviderOpenAI]
	if err := openai.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("openai without key: %v", err)
	}
	openai.APIKey = "k"
	if err := openai.Validate(); err != nil {
		t.Fatalf("openai with key: %v", err)
	}

	if err := defaults[ProviderGroq].Validate(); !errors.Is(err, ErrMissingModel) {
		t.Fatalf("groq without model: %v", err)
	}

	ollama := defaults[ProviderOllama]
	ollama.Model = "llama3.2"
	if err := ollama.Validate(); err != nil {
		t.Fatalf("ollama needs no key: %v", err)
	}

	custom := defaults[ProviderCustomOpenAI]
	custom.Model = "m"
	if err := custom.Validate(); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("custom without URL: %v", err)
	}

	if _, err := NewClient(defaults[ProviderGroq], 0, nil); err == nil {
		t.Fatal("NewClient should validate the provider")
	}
}

func TestExtractResponseText(t *testing.T) {
	if _, err := extractResponseText([]byte(`{"error":{"message":"quota exceeded"}}`)); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error object: %v", err)
	}
	if _, err := extractResponseText([]byte(`{"unexpected":true}`)); err == nil {
		t.Fatal("unknown shape should fail")
	}
	if _, err := extractResponseText([]byte(`not json`)); err == nil {
		t.Fatal("invalid JSON should fail")
	}
	got, err := extractResponseText([]byte(`{"error":null,"choices":[{"message":{"content":"x"}}]}`))
	if err != nil || got != "x" {
		t.Fatalf("null error field: %q, %v", got, err)
	}
}

func TestParseRetryDelay(t *testing.T) {
	google := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}}`)
	if got := parseRetryDelay(http.Header{}, google); got != 35*time.Second {
		t.Fatalf("RetryInfo delay = %v", got)
	}

	h := http.Header{}
	h.Set("Retry-After", "7")
	if got := parseRetryDelay(h, nil); got != 8*time.Second {
		t.Fatalf("Retry-After delay = %v", got)
	}

	if got := parseRetryDelay(http.Header{}, []byte("nope")); got != 65*time.Second {
		t.Fatalf("default delay = %v", got)
	}
}
