package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewProvider_InvalidFormat(t *testing.T) {
	for _, bad := range []string{"", "anthropic", ":model", "anthropic:"} {
		if _, err := NewProvider(bad); err == nil {
			t.Errorf("NewProvider(%q) should fail", bad)
		}
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	if _, err := NewProvider("bedrock:some-model"); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestNewProvider_Ollama_NoKeyRequired(t *testing.T) {
	p, err := NewProvider("ollama:qwen2.5-coder:32b")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	op, ok := p.(*ollamaProvider)
	if !ok {
		t.Fatalf("expected *ollamaProvider, got %T", p)
	}
	// Model names may themselves contain colons.
	if op.model != "qwen2.5-coder:32b" {
		t.Errorf("model = %q", op.model)
	}
}

func TestOllamaEndpoint(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "http://localhost:11434/v1/chat/completions"},
		{"http://gpu-box:8000/v1/", "http://gpu-box:8000/v1/chat/completions"},
		{"http://gpu-box:8000/v1/chat/completions", "http://gpu-box:8000/v1/chat/completions"},
	}
	for _, c := range cases {
		p := &ollamaProvider{baseURL: c.base}
		if got := p.endpoint(); got != c.want {
			t.Errorf("endpoint(%q) = %q, want %q", c.base, got, c.want)
		}
	}
}

func TestAnthropicComplete_HTTPTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"model":"claude-test","content":[{"type":"text","text":"hello"}]}`))
	}))
	defer srv.Close()

	orig := AnthropicAPIURL()
	SetAnthropicAPIURL(srv.URL)
	defer SetAnthropicAPIURL(orig)

	p := &anthropicProvider{model: "claude-test", apiKey: "test-key"}
	resp, err := p.Complete(context.Background(), &Request{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Model != "anthropic:claude-test" {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestOpenAIComplete_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_api_key","message":"nope"}}`))
	}))
	defer srv.Close()

	orig := OpenAIAPIURL()
	SetOpenAIAPIURL(srv.URL)
	defer SetOpenAIAPIURL(orig)

	p := &openaiProvider{model: "gpt-test", apiKey: "bad"}
	if _, err := p.Complete(context.Background(), &Request{UserPrompt: "hi"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestExtractJSON_Fenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"a\": 1,}\n```\nthanks"
	got := ExtractJSON(raw)
	if got != `{"a": 1}` {
		t.Errorf("ExtractJSON = %q", got)
	}
}

func TestExtractJSON_Bare(t *testing.T) {
	got := ExtractJSON(`prefix {"ok": true} suffix`)
	if got != `{"ok": true}` {
		t.Errorf("ExtractJSON = %q", got)
	}
}

func TestExtractJSON_None(t *testing.T) {
	if got := ExtractJSON("no json here"); got != "" {
		t.Errorf("ExtractJSON = %q, want empty", got)
	}
}

func TestExtractJSONArray_Fenced(t *testing.T) {
	got := ExtractJSONArray("```\n[1, 2, 3,]\n```")
	if got != "[1, 2, 3]" {
		t.Errorf("ExtractJSONArray = %q", got)
	}
}

func TestStripFences(t *testing.T) {
	got := StripFences("```markdown\n# Report\nbody\n```")
	if got != "# Report\nbody" {
		t.Errorf("StripFences = %q", got)
	}
	if StripFences("plain") != "plain" {
		t.Error("unfenced input should pass through")
	}
}

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Complete(_ context.Context, _ *Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return &Response{Content: "ok"}, nil
}

func TestCompleteWithRetry_EventualSuccess(t *testing.T) {
	p := &flakyProvider{failures: 2}
	cfg := RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1}
	resp, err := CompleteWithRetry(context.Background(), p, &Request{}, cfg)
	if err != nil {
		t.Fatalf("CompleteWithRetry: %v", err)
	}
	if resp.Content != "ok" || p.calls != 3 {
		t.Errorf("Content=%q calls=%d", resp.Content, p.calls)
	}
}

func TestCompleteWithRetry_Exhausted(t *testing.T) {
	p := &flakyProvider{failures: 10}
	cfg := RetryConfig{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMultiplier: 1}
	if _, err := CompleteWithRetry(context.Background(), p, &Request{}, cfg); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestCompleteWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &flakyProvider{failures: 10}
	cfg := RetryConfig{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffMultiplier: 1}
	if _, err := CompleteWithRetry(ctx, p, &Request{}, cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
