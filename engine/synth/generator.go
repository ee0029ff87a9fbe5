package synth

import (
	"context"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// GenerationRequest is one call to a generative model.
type GenerationRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces free text, expected to contain a JSON report.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}

// GraphEnricher supplies related-component lines for the prompt.
type GraphEnricher interface {
	GraphContext(ctx context.Context, v domain.Vehicle, components []string) ([]string, error)
}
