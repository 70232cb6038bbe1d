package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// OllamaEmbedder turns texts into vectors with the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	endpoint string
	model    string
	timeout  time.Duration
	http     *http.Client
	observer Observer
}

// NewOllamaEmbedder creates an embedder using cfg.EmbedEndpoint and cfg.EmbedModel.
func NewOllamaEmbedder(cfg Config, observer Observer) *OllamaEmbedder {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &OllamaEmbedder{
		endpoint: cfg.EmbedEndpoint,
		model:    cfg.EmbedModel,
		timeout:  time.Duration(cfg.TaskTimeout(TaskEmbed)) * time.Millisecond,
		http:     newHTTPClient(),
		observer: observer,
	}
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns one vector per input text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var resp embedResponse
	err := postJSON(ctx, e.http, e.endpoint+"/api/embed", nil, embedRequest{Model: e.model, Input: texts}, &resp)
	if err == nil && len(resp.Embeddings) != len(texts) {
		err = fmt.Errorf("%w: got %d embeddings for %d texts", ErrInvalidOutput, len(resp.Embeddings), len(texts))
	}
	if err != nil {
		if !errors.Is(err, ErrInvalidOutput) {
			err = classify(ctx, err)
		}
		e.observer.OnCallComplete(LLMCallEvent{
			Task:      TaskEmbed,
			Model:     e.model,
			LatencyMs: time.Since(start).Milliseconds(),
			ErrorCode: errorCode(err),
		})
		return nil, err
	}

	e.observer.OnCallComplete(LLMCallEvent{
		Task:      TaskEmbed,
		Model:     e.model,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   true,
	})
	return resp.Embeddings, nil
}
