package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GoogleModel adapts a langchaingo Google AI client to the Model contract.
type GoogleModel struct {
	llm   *googleai.GoogleAI
	model string
}

// NewGoogleModel creates a Model backed by the Gemini API.
// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models.
func NewGoogleModel(ctx context.Context, apiKey, model string) (*GoogleModel, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init Google AI client: %w", err)
	}
	return &GoogleModel{llm: llm, model: model}, nil
}

func (g *GoogleModel) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	callOpts := []llms.CallOption{}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	if opts.Stream != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			opts.Stream(string(chunk))
			return nil
		}))
	}

	resp, err := g.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}
