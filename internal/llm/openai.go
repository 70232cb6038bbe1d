package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// openAIBackend speaks the OpenAI-compatible chat completions API
// (Groq, OpenAI, vLLM and similar).
type openAIBackend struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewOpenAIClient creates an LLMClient for an OpenAI-compatible endpoint.
// Returns ErrNotConfigured when no API key is set.
func NewOpenAIClient(cfg Config, observer Observer) (LLMClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key required for provider %q", ErrNotConfigured, ProviderOpenAI)
	}
	b := &openAIBackend{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     newHTTPClient(),
	}
	return newClient(cfg, b, observer), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (b *openAIBackend) generate(ctx context.Context, model string, req GenerateRequest, task TaskConfig) (*GenerateResponse, error) {
	body := chatRequest{
		Model:       model,
		Temperature: task.Temperature,
		MaxTokens:   task.MaxTokens,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}
	if err := postJSON(ctx, b.http, b.endpoint+"/chat/completions", headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrInvalidOutput)
	}
	return &GenerateResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: resp.Usage,
	}, nil
}

func (b *openAIBackend) available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
