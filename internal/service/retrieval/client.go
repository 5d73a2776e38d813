// internal/service/retrieval/client.go

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"locale/internal/domain/event"
	"locale/internal/metrics"
)

// strictSystem is added to schema-enforced calls
const strictSystem = "Return only a JSON array of event objects using exactly the six event_* string fields. No prose, no markdown fences."

// ClientConfig controls the retrieval contract
type ClientConfig struct {
	Mode          event.Mode
	Timeout       time.Duration
	Temperature   float32
	EnforceSchema bool
}

// Options apply to a single retrieval
type Options struct {
	// Strict forces provider-side schema enforcement for this call
	Strict bool
}

// Client is the grounded retrieval client. It never retries and never
// returns partial results.
type Client struct {
	gen     Generator
	cfg     ClientConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewClient wraps gen with timeout, classification, tracing and metrics
func NewClient(gen Generator, cfg ClientConfig, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.Mode == "" {
		cfg.Mode = event.ModeStructured
	}
	return &Client{
		gen:     gen,
		cfg:     cfg,
		logger:  logger.Named("retrieval"),
		metrics: m,
		tracer:  otel.Tracer("locale/retrieval"),
	}
}

// Mode returns the configured output contract
func (c *Client) Mode() event.Mode {
	return c.cfg.Mode
}

// Provider names the underlying generator
func (c *Client) Provider() string {
	return c.gen.Name()
}

// Retrieve sends prompt to the model and returns its raw output tagged with
// the configured mode
func (c *Client) Retrieve(ctx context.Context, prompt string, opts Options) (event.RawResult, error) {
	req := Request{
		Prompt:      prompt,
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.Mode == event.ModeStructured && (c.cfg.EnforceSchema || opts.Strict) {
		req.Schema = true
		req.System = strictSystem
	}

	text, err := c.Generate(ctx, "search", req)
	if err != nil {
		return event.RawResult{}, err
	}
	return event.RawResult{Mode: c.cfg.Mode, Text: text}, nil
}

// Generate runs one model call for operation under the configured timeout.
// Errors are *event.Error of kind Timeout or RetrievalFailed.
func (c *Client) Generate(ctx context.Context, operation string, req Request) (string, error) {
	provider := c.gen.Name()

	ctx, span := c.tracer.Start(ctx, "retrieval."+operation, trace.WithAttributes(
		attribute.String("model.provider", provider),
		attribute.String("retrieval.mode", string(c.cfg.Mode)),
		attribute.Bool("retrieval.schema", req.Schema),
		attribute.Int("prompt.length", len(req.Prompt)),
	))
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.gen.Generate(ctx, req)
	elapsed := time.Since(start)
	c.metrics.ModelDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("model returned no content")
	}
	if err != nil {
		classified := c.classify(ctx, operation, err)
		kind := event.KindOf(classified)

		c.metrics.ModelCalls.WithLabelValues(provider, operation, string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		c.logger.Warn("Model call failed",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.String("kind", string(kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", classified
	}

	c.metrics.ModelCalls.WithLabelValues(provider, operation, "ok").Inc()
	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("Model call completed",
		zap.String("provider", provider),
		zap.String("operation", operation),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(text)),
	)
	return text, nil
}

func (c *Client) classify(ctx context.Context, operation string, err error) error {
	op := "retrieval." + operation
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return event.NewError(event.KindTimeout, op,
			fmt.Errorf("no answer within %s: %w", c.cfg.Timeout, err))
	}
	return event.NewError(event.KindRetrievalFailed, op, err)
}
