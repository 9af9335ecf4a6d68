// Package gemini adapts Vertex AI Gemini models to llm.Provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

const DefaultModel = "gemini-1.5-pro"

type Provider struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

func New(ctx context.Context, cfg llm.Config, log *logger.Logger) (*Provider, error) {
	project := strings.TrimSpace(cfg.Gemini.ProjectID)
	if project == "" {
		return nil, llm.ErrMissingCredentials
	}
	region := cfg.Gemini.Region
	if region == "" {
		region = "us-central1"
	}
	var opts []option.ClientOption
	if cfg.Gemini.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Gemini.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, project, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		client:     client,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("provider", "gemini"),
	}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Provider) GenerateText(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts)
}

func (p *Provider) GenerateVision(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.generate(ctx, messages, opts)
}

func (p *Provider) generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	if err := llm.Validate(messages); err != nil {
		return llm.Result{}, err
	}
	opts = opts.WithDefaults()
	name := p.model
	if opts.Model != "" {
		name = opts.Model
	}
	system, rest := llm.SplitSystem(messages)
	history, last, err := p.contents(ctx, rest)
	if err != nil {
		return llm.Result{}, err
	}

	model := p.client.GenerativeModel(name)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.SetTemperature(float32(opts.Temperature))
	model.SetMaxOutputTokens(int32(opts.MaxTokens))

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return llm.Result{}, wrapErr(err)
	}
	res, err := toResult(resp)
	if err != nil {
		return llm.Result{}, err
	}
	res.Model = name
	return res, nil
}

// contents converts the non-system conversation, splitting off the final user
// turn that SendMessage expects.
func (p *Provider) contents(ctx context.Context, msgs []llm.Message) ([]*genai.Content, *genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		c, err := p.content(ctx, m)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	last := out[len(out)-1]
	if last.Role != "user" {
		return nil, nil, fmt.Errorf("gemini: conversation must end with a user message")
	}
	return out[:len(out)-1], last, nil
}

func (p *Provider) content(ctx context.Context, m llm.Message) (*genai.Content, error) {
	role := "user"
	if m.Role == llm.RoleAssistant {
		role = "model"
	}
	c := &genai.Content{Role: role}
	for _, part := range m.Parts {
		if !part.IsImage() {
			if part.Text != "" {
				c.Parts = append(c.Parts, genai.Text(part.Text))
			}
			continue
		}
		gp, err := p.imagePart(ctx, part.ImageURL)
		if err != nil {
			return nil, err
		}
		c.Parts = append(c.Parts, gp)
	}
	return c, nil
}

func (p *Provider) imagePart(ctx context.Context, ref string) (genai.Part, error) {
	if strings.HasPrefix(ref, "gs://") {
		return genai.FileData{MIMEType: mimeFromPath(ref), FileURI: ref}, nil
	}
	img, err := llm.FetchImage(ctx, p.httpClient, ref)
	if err != nil {
		return nil, err
	}
	return genai.Blob{MIMEType: img.MIMEType, Data: img.Data}, nil
}

func mimeFromPath(ref string) string {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/png"
	}
}

func toResult(resp *genai.GenerateContentResponse) (llm.Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Result{}, &llm.ProviderError{Provider: "gemini", Message: "response had no candidates", Err: llm.ErrEmptyCompletion}
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return llm.Result{}, &llm.ProviderError{Provider: "gemini", Message: "empty completion", Err: llm.ErrEmptyCompletion}
	}
	res := llm.Result{Content: content}
	if u := resp.UsageMetadata; u != nil {
		res.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return res, nil
}

var grpcHTTPStatus = map[codes.Code]int{
	codes.InvalidArgument:   http.StatusBadRequest,
	codes.Unauthenticated:   http.StatusUnauthorized,
	codes.PermissionDenied:  http.StatusForbidden,
	codes.NotFound:          http.StatusNotFound,
	codes.ResourceExhausted: http.StatusTooManyRequests,
	codes.Internal:          http.StatusInternalServerError,
	codes.Unavailable:       http.StatusServiceUnavailable,
	codes.DeadlineExceeded:  http.StatusGatewayTimeout,
}

func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return &llm.ProviderError{Provider: "gemini", StatusCode: grpcHTTPStatus[st.Code()], Message: st.Message(), Err: err}
	}
	return &llm.ProviderError{Provider: "gemini", Err: err}
}
