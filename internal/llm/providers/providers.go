// Package providers selects the process-wide llm.Provider from configuration.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/llm/bedrock"
	"github.com/yungbote/checklist-advisor/internal/llm/claude"
	"github.com/yungbote/checklist-advisor/internal/llm/gemini"
	"github.com/yungbote/checklist-advisor/internal/llm/openai"
	"github.com/yungbote/checklist-advisor/internal/llm/stub"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

// Names lists the accepted LLM_PROVIDER values.
var Names = []string{"openai", "gemini", "claude", "bedrock", "stub"}

// New builds the configured backend wrapped with tracing. A known backend
// without credentials degrades to the fallback stub; an unknown name is an error.
func New(ctx context.Context, cfg llm.Config, log *logger.Logger) (llm.Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var (
		p   llm.Provider
		err error
	)
	switch name {
	case "":
		log.Warn("LLM_PROVIDER not set; using stub provider")
		return llm.WithTracing(stub.NewFallback(cfg.StubText)), nil
	case "stub", "mock":
		return llm.WithTracing(stub.New(cfg.StubText)), nil
	case "openai":
		var op *openai.Provider
		if op, err = openai.New(cfg, log); err == nil {
			p = op
		}
	case "gemini", "vertex":
		var gp *gemini.Provider
		if gp, err = gemini.New(ctx, cfg, log); err == nil {
			p = gp
		}
	case "claude", "anthropic":
		var cp *claude.Provider
		if cp, err = claude.New(cfg, log); err == nil {
			p = cp
		}
	case "bedrock":
		var bp *bedrock.Provider
		if bp, err = bedrock.New(ctx, cfg, log); err == nil {
			p = bp
		}
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", llm.ErrUnsupportedProvider, cfg.Provider, strings.Join(Names, ", "))
	}
	if errors.Is(err, llm.ErrMissingCredentials) {
		log.Warn("LLM credentials missing; using stub provider", "provider", name)
		return llm.WithTracing(stub.NewFallback(cfg.StubText)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", name, err)
	}
	log.Info("LLM provider ready", "provider", p.Name())
	return llm.WithTracing(p), nil
}
