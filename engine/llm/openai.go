package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"

	"github.com/WessleyAI/wessley-diagnose/engine/synth"
)

func openAIClient(apiKey, baseURL string, extra []ooption.RequestOption) openai.Client {
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return openai.NewClient(append(opts, extra...)...)
}

// OpenAI generates reports with the Chat Completions API. It also works
// against OpenAI-compatible servers via baseURL.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(apiKey, baseURL, model string, extra ...ooption.RequestOption) (*OpenAI, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("llm: openai: missing model")
	}
	return &OpenAI{client: openAIClient(apiKey, baseURL, extra), model: strings.TrimSpace(model)}, nil
}

// Generate implements synth.Generator.
func (o *OpenAI) Generate(ctx context.Context, req synth.GenerationRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, openai.SystemMessage(s))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("llm: openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder embeds text with the Embeddings API.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder. dimensions of 0 uses the model default.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int, extra ...ooption.RequestOption) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("llm: openai embed: missing model")
	}
	return &OpenAIEmbedder{client: openAIClient(apiKey, baseURL, extra), model: strings.TrimSpace(model), dimensions: dimensions}, nil
}

// Embed implements embed.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("llm: openai embed: no data")
	}
	src := resp.Data[0].Embedding
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out, nil
}
