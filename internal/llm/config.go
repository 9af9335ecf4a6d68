package llm

import (
	"time"

	"github.com/yungbote/checklist-advisor/internal/platform/envutil"
)

// Config is everything provider selection needs, read once at startup.
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
	Claude  ClaudeConfig
	Bedrock BedrockConfig

	StubText string
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Organization string
}

type GeminiConfig struct {
	ProjectID       string
	Region          string
	CredentialsFile string
}

type ClaudeConfig struct {
	APIKey  string
	BaseURL string
	Version string
}

type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// UseDefaultChain lets the AWS SDK resolve credentials from its default chain
	// (env, shared config, instance role) instead of the static keys above.
	UseDefaultChain bool
}

func ConfigFromEnv() Config {
	return Config{
		Provider:    envutil.String("LLM_PROVIDER", ""),
		Model:       envutil.String("LLM_MODEL", ""),
		Temperature: envutil.Float("LLM_TEMPERATURE", DefaultTemperature),
		MaxTokens:   envutil.Int("LLM_MAX_TOKENS", DefaultMaxTokens),
		Timeout:     envutil.Duration("LLM_TIMEOUT", 120*time.Second),
		OpenAI: OpenAIConfig{
			APIKey:       envutil.String("OPENAI_API_KEY", ""),
			BaseURL:      envutil.String("OPENAI_BASE_URL", ""),
			Organization: envutil.String("OPENAI_ORG_ID", ""),
		},
		Gemini: GeminiConfig{
			ProjectID:       envutil.String("GCP_PROJECT_ID", ""),
			Region:          envutil.String("GCP_REGION", "us-central1"),
			CredentialsFile: envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Claude: ClaudeConfig{
			APIKey:  envutil.String("ANTHROPIC_API_KEY", ""),
			BaseURL: envutil.String("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Version: envutil.String("ANTHROPIC_VERSION", "2023-06-01"),
		},
		Bedrock: BedrockConfig{
			Region:          envutil.String("AWS_REGION", ""),
			AccessKeyID:     envutil.String("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: envutil.String("AWS_SECRET_ACCESS_KEY", ""),
			SessionToken:    envutil.String("AWS_SESSION_TOKEN", ""),
			UseDefaultChain: envutil.Bool("BEDROCK_USE_DEFAULT_CREDENTIALS", false),
		},
		StubText: envutil.String("LLM_STUB_TEXT", ""),
	}
}
