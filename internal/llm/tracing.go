package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/yungbote/checklist-advisor/internal/llm"

type traced struct {
	next   Provider
	tracer trace.Tracer
}

// WithTracing wraps p so each call records an "llm.generate" span.
func WithTracing(p Provider) Provider {
	if p == nil {
		return nil
	}
	if _, ok := p.(*traced); ok {
		return p
	}
	return &traced{next: p, tracer: otel.Tracer(tracerName)}
}

func (t *traced) Name() string     { return t.next.Name() }
func (t *traced) Unwrap() Provider { return t.next }

func (t *traced) GenerateText(ctx context.Context, messages []Message, opts Options) (Result, error) {
	return t.do(ctx, "text", opts, func(ctx context.Context) (Result, error) {
		return t.next.GenerateText(ctx, messages, opts)
	})
}

func (t *traced) GenerateVision(ctx context.Context, messages []Message, opts Options) (Result, error) {
	return t.do(ctx, "vision", opts, func(ctx context.Context) (Result, error) {
		return t.next.GenerateVision(ctx, messages, opts)
	})
}

func (t *traced) do(ctx context.Context, mode string, opts Options, fn func(context.Context) (Result, error)) (Result, error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", t.next.Name()),
		attribute.String("llm.mode", mode),
	}
	for k, v := range opts.Tags {
		attrs = append(attrs, attribute.String("llm.tag."+k, v))
	}
	ctx, span := t.tracer.Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
	defer span.End()

	res, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.String("llm.model", res.Model),
		attribute.Int("llm.input_tokens", res.Usage.InputTokens),
		attribute.Int("llm.output_tokens", res.Usage.OutputTokens),
	)
	return res, nil
}
