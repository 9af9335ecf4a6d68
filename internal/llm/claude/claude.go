// Package claude adapts the Anthropic Messages API to llm.Provider.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/httpx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

const (
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultVersion = "2023-06-01"
)

type Provider struct {
	client     anthropic.Client
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

func New(cfg llm.Config, log *logger.Logger) (*Provider, error) {
	return newProvider(cfg, nil, log)
}

// NewWithHTTPClient swaps the transport, which lets tests answer requests
// from a RoundTripper.
func NewWithHTTPClient(cfg llm.Config, httpClient *http.Client) (*Provider, error) {
	return newProvider(cfg, httpClient, nil)
}

func newProvider(cfg llm.Config, httpClient *http.Client, log *logger.Logger) (*Provider, error) {
	key := strings.TrimSpace(cfg.Claude.APIKey)
	if key == "" {
		return nil, llm.ErrMissingCredentials
	}
	baseURL := strings.TrimSpace(cfg.Claude.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.Claude.Version
	if version == "" {
		version = DefaultVersion
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}}
	}
	client := anthropic.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(baseURL),
		option.WithHeader("anthropic-version", version),
		option.WithHTTPClient(httpClient),
		option.WithRequestTimeout(timeout),
		// The generation service owns retries and their backoff.
		option.WithMaxRetries(0),
	)
	return &Provider{
		client:     client,
		model:      model,
		httpClient: httpClient,
		log:        log.With("provider", "claude"),
	}, nil
}

func (p *Provider) Name() string { return "claude" }

func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *Provider) GenerateText(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts, false)
}

func (p *Provider) GenerateVision(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts, true)
}

func (p *Provider) generate(ctx context.Context, messages []llm.Message, opts llm.Options, vision bool) (llm.Result, error) {
	if err := llm.Validate(messages); err != nil {
		return llm.Result{}, err
	}
	opts = opts.WithDefaults()
	system, rest := llm.SplitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(rest)),
	}
	if opts.Model != "" {
		params.Model = anthropic.Model(opts.Model)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		blocks, err := toBlocks(m.Parts, vision)
		if err != nil {
			return llm.Result{}, err
		}
		if m.Role == llm.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Result{}, toProviderError(err)
	}
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return llm.Result{}, &llm.ProviderError{Provider: "claude", Message: "empty completion", Err: llm.ErrEmptyCompletion}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return llm.Result{
		Content: content,
		Model:   string(msg.Model),
		Usage:   llm.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}

// toBlocks drops image parts from text-only calls.
func toBlocks(parts []llm.Part, vision bool) ([]anthropic.ContentBlockParamUnion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		if !part.IsImage() {
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
			continue
		}
		if !vision {
			continue
		}
		ref := part.ImageURL
		switch {
		case llm.IsDataURI(ref):
			img, err := llm.DecodeDataURI(ref)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, strings.SplitN(ref, ",", 2)[1]))
		case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
			blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: ref}))
		default:
			return nil, fmt.Errorf("claude: unsupported image reference %q", ref)
		}
	}
	return blocks, nil
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// toProviderError keeps caller cancellation as is and maps API failures onto
// the status and Retry-After the retry policy reads.
func toProviderError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: "claude", Err: err}
	}
	pe := &llm.ProviderError{Provider: "claude", StatusCode: apiErr.StatusCode, Err: err}
	raw := apiErr.RawJSON()
	var env errorEnvelope
	if json.Unmarshal([]byte(raw), &env) == nil && env.Error.Message != "" {
		pe.Message = env.Error.Message
	} else {
		pe.Message = strings.TrimSpace(raw)
	}
	if apiErr.Response != nil {
		pe.RetryAfter = httpx.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"), time.Now())
	}
	return pe
}
