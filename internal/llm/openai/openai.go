// Package openai adapts the OpenAI chat completions API (and compatible
// endpoints) to llm.Provider.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

const DefaultModel = "gpt-4o-mini"

type Provider struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

func New(cfg llm.Config, log *logger.Logger) (*Provider, error) {
	key := strings.TrimSpace(cfg.OpenAI.APIKey)
	if key == "" {
		return nil, llm.ErrMissingCredentials
	}
	cc := openai.DefaultConfig(key)
	if cfg.OpenAI.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.OpenAI.BaseURL, "/")
	}
	cc.OrgID = cfg.OpenAI.Organization
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		client: openai.NewClientWithConfig(cc),
		model:  model,
		log:    log.With("provider", "openai"),
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) GenerateText(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.complete(ctx, messages, opts, false)
}

func (p *Provider) GenerateVision(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.complete(ctx, messages, opts, true)
}

func (p *Provider) complete(ctx context.Context, messages []llm.Message, opts llm.Options, vision bool) (llm.Result, error) {
	if err := llm.Validate(messages); err != nil {
		return llm.Result{}, err
	}
	opts = opts.WithDefaults()
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toChatMessages(messages, vision),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Result{}, wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Result{}, &llm.ProviderError{Provider: "openai", Message: "response had no choices", Err: llm.ErrEmptyCompletion}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return llm.Result{}, &llm.ProviderError{Provider: "openai", Message: "empty completion", Err: llm.ErrEmptyCompletion}
	}
	p.log.Debug("completion done", "model", resp.Model, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return llm.Result{
		Content: content,
		Model:   resp.Model,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func toChatMessages(messages []llm.Message, vision bool) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: string(m.Role)}
		if vision && m.Role == llm.RoleUser && m.HasImages() {
			for _, part := range m.Parts {
				if part.IsImage() {
					detail := openai.ImageURLDetailAuto
					if part.Detail != "" {
						detail = openai.ImageURLDetail(part.Detail)
					}
					msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL, Detail: detail},
					})
					continue
				}
				if part.Text != "" {
					msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: part.Text,
					})
				}
			}
		} else {
			msg.Content = m.Text()
		}
		out = append(out, msg)
	}
	return out
}

func wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &llm.ProviderError{Provider: "openai", Err: err}
}
