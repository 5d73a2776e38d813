// internal/service/retrieval/generator.go

// Package retrieval wraps the search-grounded model call.
package retrieval

import "context"

// Request is one grounded generation
type Request struct {
	// Prompt is the user content
	Prompt string
	// System is an optional system instruction
	System string
	// Schema asks the provider to enforce the event list schema
	Schema bool
	// Temperature in [0,1]
	Temperature float32
}

// Generator performs a single search-grounded model call and returns the
// model's text output
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// EventFields are the wire names of the six event record fields, in order
var EventFields = []string{
	"event_category",
	"event_name",
	"event_source_link",
	"event_date",
	"event_location",
	"event_description",
}
