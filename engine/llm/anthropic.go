package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/WessleyAI/wessley-diagnose/engine/synth"
)

// Anthropic generates reports with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic generator. baseURL may be empty.
func NewAnthropic(apiKey, baseURL, model string, extra ...aoption.RequestOption) (*Anthropic, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("llm: anthropic: missing model")
	}
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	opts = append(opts, extra...)
	return &Anthropic{client: anthropic.NewClient(opts...), model: strings.TrimSpace(model)}, nil
}

// Generate implements synth.Generator.
func (a *Anthropic) Generate(ctx context.Context, req synth.GenerationRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if s := strings.TrimSpace(req.System); s != "" {
		params.System = []anthropic.TextBlockParam{{Text: s}}
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("llm: anthropic: empty response")
	}
	return b.String(), nil
}
