package observability

import (
	"context"
	"testing"

	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization=Bearer x , bad, =nokey, empty= ")
	if len(got) != 1 || got["authorization"] != "Bearer x" {
		t.Fatalf("unexpected headers: %v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty input should be nil")
	}
}

func TestInitOTelDisabledIsNoop(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.Nop(), OtelConfig{Enabled: false})
	if shutdown == nil {
		t.Fatalf("shutdown must not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestOtelConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "3")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "k=v")
	cfg := OtelConfigFromEnv("svc")
	if !cfg.Enabled || cfg.SampleRatio != 1 || cfg.ServiceName != "svc" || cfg.Headers["k"] != "v" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
