package ai

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const scanPrompt = `Act as an assistant that analyses study and programming images.
Task: extract the text from the image and classify it into two parts:
1. "problem": exercise statements, questions, problems to solve, code errors...
2. "prompts": sample commands, instructions for an AI, or prompt templates.

Output requirements:
Return a single JSON object only (no markdown, no preamble) with this structure:
{
    "has_problem": boolean,
    "problem_content": "the extracted problem statement...",
    "has_prompts": boolean,
    "detected_prompts": ["prompt 1", "prompt 2"]
}
If you cannot tell the parts apart, put everything into "problem_content".`

const refinePrompt = "You are a prompt expert. Rewrite the following text into a complete prompt for an AI:\n"

var scanSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"has_problem":     {Type: genai.TypeBoolean},
		"problem_content": {Type: genai.TypeString},
		"has_prompts":     {Type: genai.TypeBoolean},
		"detected_prompts": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"has_problem", "problem_content", "has_prompts", "detected_prompts"},
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	return NewGeminiWithConfig(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}, model)
}

// NewGeminiWithConfig allows pointing the client at another endpoint.
func NewGeminiWithConfig(ctx context.Context, cc *genai.ClientConfig, model string) (*Gemini, error) {
	if cc.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: c, model: model}, nil
}

func (g *Gemini) generate(ctx context.Context, content *genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, cfg)
	if err != nil {
		return nil, upstream(err)
	}
	return res, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	res, err := g.generate(ctx, genai.NewContentFromText(prompt, genai.RoleUser), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	})
	if err != nil {
		return "", err
	}
	if res.Text() == "" {
		return "", ErrEmptyResponse
	}
	return res.Text(), nil
}

// ScanImage asks the model to split the text in an image into problem and
// prompt content. The reply is constrained to the scan JSON schema.
func (g *Gemini) ScanImage(ctx context.Context, image []byte, mimeType string) (*genai.GenerateContentResponse, error) {
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: scanPrompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}
	return g.generate(ctx, content, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   scanSchema,
	})
}

// RefineRaw rewrites text into a polished prompt. No image is sent.
func (g *Gemini) RefineRaw(ctx context.Context, text string) (*genai.GenerateContentResponse, error) {
	return g.generate(ctx, genai.NewContentFromText(refinePrompt+text, genai.RoleUser), nil)
}

func (g *Gemini) Refine(ctx context.Context, text string) (string, error) {
	res, err := g.RefineRaw(ctx, text)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}
