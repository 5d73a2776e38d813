// internal/service/retrieval/openai.go

package retrieval

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIGenerator calls the Responses API with the web search tool. The
// event schema is carried by the instruction text only.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates a Responses API client. baseURL may be empty.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name identifies the provider in logs and metrics
func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Generate runs one grounded call
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(g.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
		Temperature: openai.Float(float64(req.Temperature)),
		Tools: []responses.ToolUnionParam{
			{OfWebSearchPreview: &responses.WebSearchToolParam{
				Type: responses.WebSearchToolTypeWebSearchPreview,
			}},
		},
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}

	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}
