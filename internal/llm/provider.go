// Package llm provides clients for the external text-generation service the
// pipeline delegates to: remediation synthesis, narrative rendering, and
// requirement extraction. The package is transport only — prompt content
// lives with the components that own it.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// sharedHTTPClient is used by all providers; a 5-minute timeout covers slow
// model responses. Callers impose tighter per-call deadlines via context.
var sharedHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// defaultMaxTokens is the fallback when Request.MaxTokens is not set.
const defaultMaxTokens = 4096

// Request holds the parameters for a completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	// Model overrides the provider's configured model when non-empty.
	Model string
}

// Response holds the result of a completion call.
type Response struct {
	Content string
	Model   string // actual model used, echoed back for artifacts
}

// Provider is the interface for text-generation backends. Every pipeline
// stage that talks to the service depends on this interface, so tests can
// substitute a deterministic stub.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// NewProvider parses a "provider:model" string and returns the appropriate
// Provider. API keys are read from the environment at construction time and
// validated immediately. Example: "anthropic:claude-sonnet-4-5" or
// "ollama:qwen2.5-coder:32b" (everything after the first colon is the model).
func NewProvider(providerModel string) (Provider, error) {
	parts := strings.SplitN(providerModel, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid model format %q: expected provider:model (e.g. anthropic:claude-sonnet-4-5)", providerModel)
	}
	switch parts[0] {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		return &anthropicProvider{model: parts[1], apiKey: apiKey}, nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		return &openaiProvider{model: parts[1], apiKey: apiKey}, nil
	case "ollama":
		// Local models need no key; COMPLIQ_OLLAMA_URL overrides the endpoint.
		return &ollamaProvider{model: parts[1], baseURL: os.Getenv("COMPLIQ_OLLAMA_URL")}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: supported providers are anthropic, openai, ollama", parts[0])
	}
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
