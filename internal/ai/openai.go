package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const DefaultOpenAIModel = "gpt-5-mini"

// OpenAI serves chat and refine through the Responses API.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAI) respond(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	params.Model = o.model
	res, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", upstream(err)
	}
	out := res.OutputText()
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return o.respond(ctx, responses.ResponseNewParams{
		Input:       responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Temperature: openai.Float(temperature),
	})
}

func (o *OpenAI) Refine(ctx context.Context, text string) (string, error) {
	return o.respond(ctx, responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(refinePrompt + text)},
	})
}
