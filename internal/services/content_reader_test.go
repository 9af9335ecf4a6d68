package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/checklist-advisor/internal/data/repos/testutil"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/llm/stub"
)

func TestLookupReturnsNewestEntry(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t, nil)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	seedStoreVersion(t, store, types.KindAdvice, "advice-v1", base, []string{"ja"}, "a-item")
	seedStoreVersion(t, store, types.KindAdvice, "advice-v2", base.Add(time.Minute), []string{"ja"}, "a-item")

	r := NewContentReader(testutil.Logger(t), store, testItems(1), stub.New(""), DefaultGenerationConfig())
	res, err := r.Lookup(ctx, types.KindAdvice, "a-item", "ja")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || !res.FromCache || res.Version != "advice-v2" || res.Body != "advice-v2/a-item/ja" {
		t.Fatalf("unexpected result: %+v", res)
	}

	miss, err := r.Lookup(ctx, types.KindAdvice, "a-item", "en")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if miss.Found || miss.FromCache {
		t.Fatalf("unexpected miss result: %+v", miss)
	}

	if _, err := r.Lookup(ctx, types.Kind("nope"), "a-item", "ja"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind: %v", err)
	}
}

func TestLookupOrGenerateDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t, nil)
	p := stub.New("fresh text")
	r := NewContentReader(testutil.Logger(t), store, testItems(1), p, DefaultGenerationConfig())

	res, err := r.LookupOrGenerate(ctx, types.KindAdvice, "a-item", "en")
	if err != nil {
		t.Fatalf("LookupOrGenerate: %v", err)
	}
	if !res.Found || res.FromCache || res.Body != "fresh text" || res.Title != "Title a-item" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if e, _ := store.GetEntry(ctx, types.KindAdvice, "a-item", "en", ""); e != nil {
		t.Fatalf("degraded generation must not be cached")
	}

	unknown, err := r.LookupOrGenerate(ctx, types.KindAdvice, "zzz", "en")
	if err != nil || unknown.Found {
		t.Fatalf("unknown item: %v %+v", err, unknown)
	}
	if p.Calls() != 1 {
		t.Fatalf("provider calls: %d", p.Calls())
	}
}

func TestLookupOrGenerateSkipsFallbackProvider(t *testing.T) {
	_, store := newTestStore(t, nil)
	p := stub.NewFallback("")
	r := NewContentReader(testutil.Logger(t), store, testItems(1), llm.WithTracing(p), DefaultGenerationConfig())
	res, err := r.LookupOrGenerate(context.Background(), types.KindAdvice, "a-item", "en")
	if err != nil || res.Found {
		t.Fatalf("fallback provider should yield a plain miss: %v %+v", err, res)
	}
	if p.Calls() != 0 {
		t.Fatalf("fallback stub should not be called")
	}
}

func TestLookupOrGenerateSurfacesProviderError(t *testing.T) {
	_, store := newTestStore(t, nil)
	p := stub.New("").WithFailure(func([]llm.Message, llm.Options) error { return errors.New("boom") })
	r := NewContentReader(testutil.Logger(t), store, testItems(1), p, DefaultGenerationConfig())
	if _, err := r.LookupOrGenerate(context.Background(), types.KindAdvice, "a-item", "en"); err == nil {
		t.Fatalf("expected provider error")
	}
}
