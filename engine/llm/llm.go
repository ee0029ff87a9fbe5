// Package llm binds the embedding and generation capabilities to concrete
// providers: Anthropic, OpenAI and Ollama.
package llm

import (
	"fmt"

	"github.com/WessleyAI/wessley-diagnose/engine/embed"
	"github.com/WessleyAI/wessley-diagnose/engine/synth"
	"github.com/WessleyAI/wessley-diagnose/pkg/config"
	"github.com/WessleyAI/wessley-diagnose/pkg/ollama"
)

// NewGenerator builds the configured generator.
func NewGenerator(cfg config.Generator) (synth.Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "ollama":
		return NewOllama(ollama.New(cfg.BaseURL), cfg.Model), nil
	default:
		return nil, fmt.Errorf("llm: unknown generator provider %q", cfg.Provider)
	}
}

// NewEmbedder builds the configured embedder behind an embed.Guard.
func NewEmbedder(cfg config.Embed) (*embed.Guard, error) {
	var backend embed.Embedder
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		backend = e
	case "ollama":
		backend = NewOllamaEmbedder(ollama.New(cfg.BaseURL), cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown embed provider %q", cfg.Provider)
	}
	return embed.NewGuard(backend, embed.GuardOpts{Dimensions: cfg.Dimensions, Timeout: cfg.Timeout}), nil
}
