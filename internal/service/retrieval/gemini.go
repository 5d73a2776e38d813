// internal/service/retrieval/gemini.go

package retrieval

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator calls Gemini with Google Search grounding
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini API client for apiKey
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Name identifies the provider in logs and metrics
func (g *GeminiGenerator) Name() string {
	return "gemini"
}

// Generate runs one grounded call
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = EventListSchema()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response")
	}
	return resp.Text(), nil
}

// EventListSchema describes an array of flat event objects with string fields
func EventListSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(EventFields))
	for _, f := range EventFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	props["event_location"].Description = "latitude, longitude with two decimals"

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:             genai.TypeObject,
			Properties:       props,
			Required:         EventFields,
			PropertyOrdering: EventFields,
		},
	}
}
