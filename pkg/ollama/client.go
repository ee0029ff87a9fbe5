// Package ollama is a small client for Ollama's HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client. An empty baseURL uses http://localhost:11434.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding of text under model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var result embedResp
	if err := c.post(ctx, "/api/embeddings", embedReq{Model: model, Prompt: text}, &result); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a non-streaming chat call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSON asks the model to emit a single JSON value.
	JSON bool
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatReq struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   string      `json:"format,omitempty"`
	Options  chatOptions `json:"options"`
}

type chatResp struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat returns the assistant reply for req.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	body := chatReq{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.JSON {
		body.Format = "json"
	}
	var result chatResp
	if err := c.post(ctx, "/api/chat", body, &result); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return result.Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
