package llm

import (
	"context"
	"strings"
)

// defaultOllamaURL is the local Ollama endpoint in OpenAI-compatible mode.
const defaultOllamaURL = "http://localhost:11434/v1"

// ollamaProvider talks to Ollama (or any OpenAI-compatible local server)
// without authentication.
type ollamaProvider struct {
	model   string
	baseURL string // empty = defaultOllamaURL
}

func (p *ollamaProvider) endpoint() string {
	base := p.baseURL
	if base == "" {
		base = defaultOllamaURL
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (p *ollamaProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	return completeChat(ctx, "ollama", p.endpoint(), p.model, req, nil)
}
