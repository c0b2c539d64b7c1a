package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAPI talks to the Gemini developer API with an API key.
type GeminiAPI struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiAPI(ctx context.Context, apiKey string, opts Options) (*GeminiAPI, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	m := c.GenerativeModel(opts.Model)
	m.SetTemperature(opts.Temperature)
	m.SetTopK(opts.TopK)
	m.SetTopP(opts.TopP)
	m.SetMaxOutputTokens(opts.MaxOutputTokens)
	if opts.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opts.SystemInstruction)}}
	}

	return &GeminiAPI{client: c, model: m}, nil
}

func (g *GeminiAPI) Close() error { return g.client.Close() }

func (g *GeminiAPI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// first candidate with content wins
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
