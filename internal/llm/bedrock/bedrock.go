// Package bedrock adapts the AWS Bedrock Converse API to llm.Provider.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

const DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// ConverseAPI is the slice of the bedrockruntime client this package uses.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Provider struct {
	api        ConverseAPI
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

func New(ctx context.Context, cfg llm.Config, log *logger.Logger) (*Provider, error) {
	bc := cfg.Bedrock
	if strings.TrimSpace(bc.Region) == "" {
		return nil, llm.ErrMissingCredentials
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(bc.Region)}
	switch {
	case bc.AccessKeyID != "" && bc.SecretAccessKey != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(bc.AccessKeyID, bc.SecretAccessKey, bc.SessionToken),
		))
	case bc.UseDefaultChain:
	default:
		return nil, llm.ErrMissingCredentials
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg, log), nil
}

func NewWithAPI(api ConverseAPI, cfg llm.Config, log *logger.Logger) *Provider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		api:        api,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("provider", "bedrock"),
	}
}

func (p *Provider) Name() string { return "bedrock" }

func (p *Provider) GenerateText(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.converse(ctx, messages, opts, false)
}

func (p *Provider) GenerateVision(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	return p.converse(ctx, messages, opts, true)
}

func (p *Provider) converse(ctx context.Context, messages []llm.Message, opts llm.Options, vision bool) (llm.Result, error) {
	if err := llm.Validate(messages); err != nil {
		return llm.Result{}, err
	}
	opts = opts.WithDefaults()
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	system, rest := llm.SplitSystem(messages)
	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(opts.MaxTokens)),
			Temperature: aws.Float32(float32(opts.Temperature)),
		},
	}
	if system != "" {
		in.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	for _, m := range rest {
		msg := brtypes.Message{Role: brtypes.ConversationRoleUser}
		if m.Role == llm.RoleAssistant {
			msg.Role = brtypes.ConversationRoleAssistant
		}
		for _, part := range m.Parts {
			if part.IsImage() {
				if !vision {
					continue
				}
				img, err := llm.FetchImage(ctx, p.httpClient, part.ImageURL)
				if err != nil {
					return llm.Result{}, err
				}
				msg.Content = append(msg.Content, &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
					Format: brtypes.ImageFormat(img.Format()),
					Source: &brtypes.ImageSourceMemberBytes{Value: img.Data},
				}})
				continue
			}
			if part.Text != "" {
				msg.Content = append(msg.Content, &brtypes.ContentBlockMemberText{Value: part.Text})
			}
		}
		in.Messages = append(in.Messages, msg)
	}

	out, err := p.api.Converse(ctx, in)
	if err != nil {
		return llm.Result{}, wrapErr(err)
	}
	return toResult(out, model)
}

func toResult(out *bedrockruntime.ConverseOutput, model string) (llm.Result, error) {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return llm.Result{}, &llm.ProviderError{Provider: "bedrock", Message: "response had no message", Err: llm.ErrEmptyCompletion}
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if txt, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(txt.Value)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return llm.Result{}, &llm.ProviderError{Provider: "bedrock", Message: "empty completion", Err: llm.ErrEmptyCompletion}
	}
	res := llm.Result{Content: content, Model: model}
	if u := out.Usage; u != nil {
		res.Usage = llm.Usage{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
		}
	}
	return res, nil
}

func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	pe := &llm.ProviderError{Provider: "bedrock", Err: err}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		pe.StatusCode = respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Message = apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
	}
	return pe
}
