package llm

import (
	"context"

	"github.com/WessleyAI/wessley-diagnose/engine/synth"
	"github.com/WessleyAI/wessley-diagnose/pkg/ollama"
)

// Ollama generates reports with a local Ollama model in JSON mode.
type Ollama struct {
	client *ollama.Client
	model  string
}

func NewOllama(c *ollama.Client, model string) *Ollama {
	return &Ollama{client: c, model: model}
}

// Generate implements synth.Generator.
func (o *Ollama) Generate(ctx context.Context, req synth.GenerationRequest) (string, error) {
	msgs := []ollama.Message{{Role: "user", Content: req.Prompt}}
	if req.System != "" {
		msgs = append([]ollama.Message{{Role: "system", Content: req.System}}, msgs...)
	}
	return o.client.Chat(ctx, ollama.ChatRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSON:        true,
	})
}

// OllamaEmbedder embeds text with a local Ollama model.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

func NewOllamaEmbedder(c *ollama.Client, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: c, model: model}
}

// Embed implements embed.Embedder.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return o.client.Embed(ctx, o.model, text)
}
