package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// openaiAPIURL is a var to allow test overrides via httptest.
var openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIAPIURL returns the current OpenAI API endpoint URL.
// Exposed for use by integration tests via httptest servers.
func OpenAIAPIURL() string { return openaiAPIURL }

// SetOpenAIAPIURL overrides the OpenAI API endpoint URL.
// Intended for use in tests only.
func SetOpenAIAPIURL(u string) { openaiAPIURL = u }

type openaiProvider struct {
	model  string
	apiKey string // unexported; never serialized by encoding/json
}

// chatRequest is the OpenAI chat-completions request format, also spoken by
// Ollama, vLLM, and other compatible servers.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openaiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	return completeChat(ctx, "openai", openaiAPIURL, p.model, req, func(h http.Header) {
		h.Set("Authorization", "Bearer "+p.apiKey)
	})
}

// completeChat performs one request against an OpenAI-compatible endpoint.
func completeChat(ctx context.Context, name, url, providerModel string, req *Request, setHeaders func(http.Header)) (*Response, error) {
	model := providerModel
	if req.Model != "" {
		model = req.Model
	}

	// Only include a system message when non-empty to avoid wasted tokens.
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body := chatRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}

	respBytes, status, err := postJSON(ctx, url, body, setHeaders)
	if err != nil {
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(respBytes, &cr); err != nil {
		return nil, fmt.Errorf("parsing response JSON (HTTP %d, body: %s): %w", status, truncate(string(respBytes), 200), err)
	}

	if status != http.StatusOK {
		if cr.Error != nil {
			return nil, fmt.Errorf("%s: %s: %s", name, cr.Error.Type, cr.Error.Message)
		}
		return nil, fmt.Errorf("%s: HTTP %d: %s", name, status, truncate(string(respBytes), 200))
	}

	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response", name)
	}

	return &Response{
		Content: cr.Choices[0].Message.Content,
		Model:   fmt.Sprintf("%s:%s", name, cr.Model),
	}, nil
}
