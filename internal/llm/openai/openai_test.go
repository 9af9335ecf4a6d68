package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yungbote/checklist-advisor/internal/llm"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := New(llm.Config{
		Timeout: 5 * time.Second,
		OpenAI:  llm.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestGenerateText(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("auth=%q", r.Header.Get("Authorization"))
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":" advice "},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	})

	res, err := p.GenerateText(context.Background(), []llm.Message{
		llm.SystemMessage("you advise"),
		llm.UserMessage("item 1"),
	}, llm.Options{})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if res.Content != "advice" {
		t.Fatalf("content=%q", res.Content)
	}
	if res.Usage.TotalTokens != 5 {
		t.Fatalf("usage=%+v", res.Usage)
	}
	if got["model"] != DefaultModel {
		t.Fatalf("model=%v", got["model"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", got["messages"])
	}
}

func TestGenerateVisionSendsImageParts(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"messages"`
	}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"seen"}}]}`))
	})
	_, err := p.GenerateVision(context.Background(), []llm.Message{{
		Role:  llm.RoleUser,
		Parts: []llm.Part{llm.Text("describe"), llm.Image("https://example.com/a.png")},
	}}, llm.Options{})
	if err != nil {
		t.Fatalf("GenerateVision: %v", err)
	}
	parts, ok := got.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("content=%v", got.Messages[0].Content)
	}
}

func TestErrorCarriesStatusAndMessage(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})
	_, err := p.GenerateText(context.Background(), []llm.Message{llm.UserMessage("x")}, llm.Options{})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T %v", err, err)
	}
	if pe.StatusCode != http.StatusUnauthorized || pe.Message != "bad key" {
		t.Fatalf("got %+v", pe)
	}
}

func TestMissingKey(t *testing.T) {
	if _, err := New(llm.Config{}, nil); !errors.Is(err, llm.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}
