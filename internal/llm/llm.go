// Package llm is the provider-neutral generation contract. Backends live in
// sub-packages and are selected once per process by package providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one piece of message content: text, or an image reference
// (https://…, gs://… or a data: URI).
type Part struct {
	Text     string
	ImageURL string
	Detail   string
}

func Text(s string) Part     { return Part{Text: s} }
func Image(ref string) Part  { return Part{ImageURL: strings.TrimSpace(ref)} }
func (p Part) IsImage() bool { return p.ImageURL != "" }

type Message struct {
	Role  Role
	Parts []Part
}

func SystemMessage(text string) Message { return Message{Role: RoleSystem, Parts: []Part{Text(text)}} }
func UserMessage(text string) Message   { return Message{Role: RoleUser, Parts: []Part{Text(text)}} }
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{Text(text)}}
}

// Text joins the message's text parts with newlines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if !p.IsImage() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (m Message) HasImages() bool {
	for _, p := range m.Parts {
		if p.IsImage() {
			return true
		}
	}
	return false
}

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

type Options struct {
	Temperature float64
	MaxTokens   int
	// Model overrides the backend's configured model for one call.
	Model string
	// Tags are opaque labels (kind, item, language) that backends only use for tracing.
	Tags map[string]string
}

// WithDefaults fills unset fields. A zero temperature is kept as requested
// only when MaxTokens is also set, so a zero-value Options gets both defaults.
func (o Options) WithDefaults() Options {
	if o.MaxTokens <= 0 {
		if o.Temperature == 0 {
			o.Temperature = DefaultTemperature
		}
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider is the single generation capability every backend implements.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, messages []Message, opts Options) (Result, error)
	GenerateVision(ctx context.Context, messages []Message, opts Options) (Result, error)
}

var (
	ErrNoMessages          = errors.New("llm: no messages")
	ErrEmptyCompletion     = errors.New("llm: empty completion")
	ErrMissingCredentials  = errors.New("llm: missing credentials")
	ErrUnsupportedProvider = errors.New("llm: unsupported provider")
)

// ProviderError carries the backend's own error message and, when known, its HTTP status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the server's requested wait, when it sent one.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status=%d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

func (e *ProviderError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// SplitSystem lifts every system message out of msgs (joined by blank lines) for
// backends that take the system prompt as a separate field.
func SplitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if t := strings.TrimSpace(m.Text()); t != "" {
				system = append(system, t)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// Validate rejects empty conversations and unknown roles.
func Validate(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrNoMessages
	}
	nonSystem := 0
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
		case RoleUser, RoleAssistant:
			nonSystem++
		default:
			return fmt.Errorf("llm: message %d has unknown role %q", i, m.Role)
		}
	}
	if nonSystem == 0 {
		return ErrNoMessages
	}
	return nil
}

type fallbackReporter interface {
	IsFallback() bool
}

type unwrapper interface {
	Unwrap() Provider
}

// IsFallback reports whether p is the stub chosen because no credentials were configured.
func IsFallback(p Provider) bool {
	for p != nil {
		if fr, ok := p.(fallbackReporter); ok {
			return fr.IsFallback()
		}
		u, ok := p.(unwrapper)
		if !ok {
			return false
		}
		p = u.Unwrap()
	}
	return false
}

// Close releases backend resources (gRPC connections, idle sockets) when the
// provider holds any.
func Close(p Provider) error {
	for p != nil {
		if c, ok := p.(interface{ Close() error }); ok {
			return c.Close()
		}
		u, ok := p.(unwrapper)
		if !ok {
			return nil
		}
		p = u.Unwrap()
	}
	return nil
}
