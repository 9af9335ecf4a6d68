// Package stub is the deterministic backend used when no real provider is
// configured, and the scripted backend used by tests.
package stub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yungbote/checklist-advisor/internal/llm"
)

const DefaultText = "[stub] no LLM provider is configured; this text was produced without calling a model."

// FailFunc decides per call whether the stub should fail; nil means succeed.
type FailFunc func(messages []llm.Message, opts llm.Options) error

type Provider struct {
	text     string
	fallback bool

	mu     sync.RWMutex
	failFn FailFunc
	calls  atomic.Int64
}

// New returns an explicitly selected stub.
func New(text string) *Provider {
	if text == "" {
		text = DefaultText
	}
	return &Provider{text: text}
}

// NewFallback returns a stub standing in for a provider that had no credentials.
func NewFallback(text string) *Provider {
	p := New(text)
	p.fallback = true
	return p
}

func (p *Provider) WithFailure(fn FailFunc) *Provider {
	p.mu.Lock()
	p.failFn = fn
	p.mu.Unlock()
	return p
}

func (p *Provider) Name() string     { return "stub" }
func (p *Provider) IsFallback() bool { return p.fallback }
func (p *Provider) Calls() int       { return int(p.calls.Load()) }

func (p *Provider) GenerateText(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts)
}

func (p *Provider) GenerateVision(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts)
}

func (p *Provider) generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return llm.Result{}, err
	}
	if err := llm.Validate(messages); err != nil {
		return llm.Result{}, err
	}
	p.mu.RLock()
	fn := p.failFn
	p.mu.RUnlock()
	if fn != nil {
		if err := fn(messages, opts); err != nil {
			return llm.Result{}, err
		}
	}
	return llm.Result{Content: p.text, Model: "stub"}, nil
}
