package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/checklist-advisor/internal/data/repos/testutil"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/llm/stub"
)

func failLanguage(lang string) stub.FailFunc {
	return func(_ []llm.Message, opts llm.Options) error {
		if opts.Tags["language"] == lang {
			return &llm.ProviderError{Provider: "stub", StatusCode: 401, Message: "invalid api key"}
		}
		return nil
	}
}

func TestGenerationEndToEnd(t *testing.T) {
	ctx := context.Background()
	p := stub.New("generated advice")
	env := newTestEnv(t, p, testItems(2), nil)

	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{})
	if sum.Status != types.StatusCompleted || sum.TotalItems != 4 || len(sum.Errors) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	for _, lang := range []string{"ja", "en"} {
		if got := sum.Results[lang]; got.Generated != 2 {
			t.Fatalf("%s results: %+v", lang, got)
		}
	}

	st, err := env.store.Stats(ctx, types.KindAdvice, sum.Version)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 4 {
		t.Fatalf("entries: want=4 got=%d", st.Total)
	}

	prog := env.tracker.Get(types.KindAdvice)
	if prog.Status != types.StatusCompleted || prog.CompletedItems != 4 || prog.TotalItems != 4 {
		t.Fatalf("unexpected progress: %+v", prog)
	}
	if len(prog.Errors) != 0 || prog.EndTime == nil || prog.Version != sum.Version {
		t.Fatalf("unexpected progress details: %+v", prog)
	}
	if p.Calls() != 4 {
		t.Fatalf("provider calls: want=4 got=%d", p.Calls())
	}
}

func TestGenerationDegradedLanguageStillCompletes(t *testing.T) {
	ctx := context.Background()
	p := stub.New("").WithFailure(failLanguage("en"))
	env := newTestEnv(t, p, testItems(2), nil)

	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"ja", "en"}})
	if sum.Status != types.StatusCompleted {
		t.Fatalf("status: %s", sum.Status)
	}
	if len(sum.Errors) != 2 {
		t.Fatalf("errors: want=2 got=%d", len(sum.Errors))
	}
	for _, e := range sum.Errors {
		if e.Language != "en" || !strings.Contains(e.Message, "invalid api key") {
			t.Fatalf("unexpected error record: %+v", e)
		}
	}
	st, _ := env.store.Stats(ctx, types.KindAdvice, sum.Version)
	if st.Total != 2 || st.PerLanguage["ja"] != 2 || st.PerLanguage["en"] != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	prog := env.tracker.Get(types.KindAdvice)
	if prog.Status != types.StatusCompleted || prog.CompletedItems != 4 || len(prog.Errors) != 2 {
		t.Fatalf("unexpected progress: %+v", prog)
	}
}

func TestGenerationCacheHitSkipsProvider(t *testing.T) {
	p := stub.New("")
	env := newTestEnv(t, p, testItems(2), nil)

	first := runToEnd(t, env, types.KindAdvice, GenerationRequest{})
	if p.Calls() != 4 {
		t.Fatalf("first run calls: %d", p.Calls())
	}

	second := runToEnd(t, env, types.KindAdvice, GenerationRequest{})
	if p.Calls() != 4 {
		t.Fatalf("cache hits should not call the provider: calls=%d", p.Calls())
	}
	if second.Version == first.Version {
		t.Fatalf("each run needs its own version")
	}
	if got := second.Results["ja"]; got.FromCache != 2 || got.Generated != 0 {
		t.Fatalf("second run results: %+v", got)
	}
	if env.tracker.Get(types.KindAdvice).CompletedItems != 4 {
		t.Fatalf("cache hits must still advance progress")
	}

	runToEnd(t, env, types.KindAdvice, GenerationRequest{ForceRegenerate: true})
	if p.Calls() != 8 {
		t.Fatalf("forced run calls: want=8 got=%d", p.Calls())
	}
}

func TestGenerationFailureIsContained(t *testing.T) {
	ctx := context.Background()
	p := stub.New("").WithFailure(func(msgs []llm.Message, opts llm.Options) error {
		if opts.Tags["item_id"] == "a-item" && opts.Tags["language"] == "en" {
			return errors.New("upstream exploded")
		}
		return nil
	})
	env := newTestEnv(t, p, testItems(3), nil)

	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"en"}})
	if len(sum.Errors) != 1 || sum.Errors[0].ItemID != "a-item" {
		t.Fatalf("errors: %+v", sum.Errors)
	}
	if got := sum.Results["en"]; got.Failed != 1 || got.Generated != 2 {
		t.Fatalf("results: %+v", got)
	}
	for _, id := range []string{"b-item", "c-item"} {
		if e, _ := env.store.GetEntry(ctx, types.KindAdvice, id, "en", sum.Version); e == nil {
			t.Fatalf("%s should have been generated after the failure", id)
		}
	}
	if env.tracker.Get(types.KindAdvice).CompletedItems != 3 {
		t.Fatalf("failed pair must still count as processed")
	}
}

func TestGenerationCircuitBreakerSkipsRestOfLanguage(t *testing.T) {
	ctx := context.Background()
	p := stub.New("").WithFailure(failLanguage("ja"))
	env := newTestEnv(t, p, testItems(5), nil)

	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"ja", "en"}})
	ja := sum.Results["ja"]
	if ja.Failed != 3 || ja.Skipped != 2 || ja.Generated != 0 {
		t.Fatalf("ja results: %+v", ja)
	}
	if en := sum.Results["en"]; en.Generated != 5 {
		t.Fatalf("en results: %+v", en)
	}
	if p.Calls() != 8 {
		t.Fatalf("provider calls: want=8 got=%d", p.Calls())
	}
	st, _ := env.store.Stats(ctx, types.KindAdvice, sum.Version)
	if st.PerLanguage["ja"] != 0 || st.PerLanguage["en"] != 5 {
		t.Fatalf("stats: %+v", st)
	}
	prog := env.tracker.Get(types.KindAdvice)
	if prog.Status != types.StatusCompleted || prog.CompletedItems != 10 || len(prog.Errors) != 3 {
		t.Fatalf("progress: %+v", prog)
	}
}

func TestGenerationCacheHitResetsFailureCounter(t *testing.T) {
	items := testItems(5)
	p := stub.New("").WithFailure(func(msgs []llm.Message, opts llm.Options) error {
		return errors.New("down")
	})
	env := newTestEnv(t, p, items, nil)

	// c-item is cached, so the failures around it never become consecutive.
	seedStoreVersion(t, env.store, types.KindAdvice, "advice-seed", time.Now().UTC(), []string{"en"}, "c-item")

	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"en"}})
	got := sum.Results["en"]
	if got.Failed != 4 || got.FromCache != 1 || got.Skipped != 0 {
		t.Fatalf("results: %+v", got)
	}
	if len(sum.Errors) != 4 {
		t.Fatalf("errors: %d", len(sum.Errors))
	}
}

func TestGenerationProgressIsMonotonic(t *testing.T) {
	p := stub.New("")
	env := newTestEnv(t, p, testItems(3), func(c *GenerationConfig) { c.ParallelLanguages = true })
	rec := &recorder{}
	unsub := env.tracker.Subscribe(types.KindAdvice, rec.observe)
	defer unsub()

	runToEnd(t, env, types.KindAdvice, GenerationRequest{})

	states := rec.snapshot()
	last := 0
	for _, s := range states {
		if s.CompletedItems < last {
			t.Fatalf("completed_items decreased: %d after %d", s.CompletedItems, last)
		}
		if s.TotalItems > 0 && s.CompletedItems > s.TotalItems {
			t.Fatalf("completed_items %d exceeds total %d", s.CompletedItems, s.TotalItems)
		}
		last = s.CompletedItems
	}
	if final := states[len(states)-1]; final.Status != types.StatusCompleted || final.CompletedItems != 6 {
		t.Fatalf("final state: %+v", final)
	}
}

// orderingStore records the order of version and entry writes.
type orderingStore struct {
	CacheStore
	mu     sync.Mutex
	events []string
}

func (s *orderingStore) PutVersion(ctx context.Context, v *types.CacheVersion) error {
	s.mu.Lock()
	s.events = append(s.events, "version")
	s.mu.Unlock()
	return s.CacheStore.PutVersion(ctx, v)
}

func (s *orderingStore) PutEntry(ctx context.Context, e *types.CacheEntry) error {
	s.mu.Lock()
	s.events = append(s.events, "entry")
	s.mu.Unlock()
	return s.CacheStore.PutEntry(ctx, e)
}

func TestGenerationWritesVersionBeforeEntries(t *testing.T) {
	base := newTestEnv(t, nil, nil, nil)
	spy := &orderingStore{CacheStore: base.store}
	cfg := DefaultGenerationConfig()
	cfg.CallDelay = 0
	cfg.ParallelLanguages = true
	svc := NewGenerationService(testutil.Logger(t), cfg, stub.New(""), spy, testItems(2), base.tracker)

	if _, err := svc.Run(context.Background(), types.KindVirtualEvidence, GenerationRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(spy.events) != 5 || spy.events[0] != "version" {
		t.Fatalf("unexpected write order: %v", spy.events)
	}
	for _, ev := range spy.events[1:] {
		if ev != "entry" {
			t.Fatalf("unexpected write order: %v", spy.events)
		}
	}
}

// gate blocks every provider call until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) fail(_ []llm.Message, _ llm.Options) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return nil
}

func TestGenerationRejectsConcurrentRunOfSameKind(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	env := newTestEnv(t, stub.New("").WithFailure(g.fail), testItems(1), nil)

	h, err := env.svc.Start(ctx, types.KindAdvice, GenerationRequest{Languages: []string{"en"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-g.entered
	if _, err := env.svc.Start(ctx, types.KindAdvice, GenerationRequest{}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("want ErrRunInProgress, got %v", err)
	}
	close(g.release)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sum, err := h.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if sum.Status != types.StatusCompleted {
		t.Fatalf("status: %s", sum.Status)
	}
	runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"en"}, ForceRegenerate: true})
}

func TestGenerationCancel(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	env := newTestEnv(t, stub.New("").WithFailure(g.fail), testItems(3), nil)

	if err := env.svc.Cancel(types.KindAdvice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel without run: want ErrNotFound, got %v", err)
	}
	h, err := env.svc.Start(ctx, types.KindAdvice, GenerationRequest{Languages: []string{"en"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-g.entered
	if err := env.svc.Cancel(types.KindAdvice); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(g.release)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sum, err := h.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if sum.Status != types.StatusFailed {
		t.Fatalf("status: %s", sum.Status)
	}
	last := sum.Errors[len(sum.Errors)-1]
	if last.Message != "canceled" {
		t.Fatalf("last error: %+v", last)
	}
	prog := env.tracker.Get(types.KindAdvice)
	if prog.Status != types.StatusFailed || prog.EndTime == nil {
		t.Fatalf("progress: %+v", prog)
	}
	if v, _ := env.store.GetVersion(ctx, types.KindAdvice, h.Version); v == nil {
		t.Fatalf("version row must survive cancellation")
	}
	if e, _ := env.store.GetEntry(ctx, types.KindAdvice, "a-item", "en", h.Version); e == nil {
		t.Fatalf("in-flight item should be kept")
	}
}

func TestGenerationConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, stub.New(""), testItems(1), nil)
	cases := map[string]GenerationRequest{
		"unsupported language": {Languages: []string{"fr"}},
		"no languages":         {IncludeJA: boolPtr(false), IncludeEN: boolPtr(false)},
	}
	for name, req := range cases {
		if _, err := env.svc.Start(ctx, types.KindAdvice, req); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: want ErrConfiguration, got %v", name, err)
		}
	}
	if _, err := env.svc.Start(ctx, types.Kind("poems"), GenerationRequest{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind: %v", err)
	}

	fallback := newTestEnv(t, stub.NewFallback(""), testItems(1), nil)
	if _, err := fallback.svc.Start(ctx, types.KindAdvice, GenerationRequest{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("fallback provider: want ErrConfiguration, got %v", err)
	}
	versions, _ := fallback.store.ListVersions(ctx, types.KindAdvice)
	if len(versions) != 0 {
		t.Fatalf("configuration error must not create versions")
	}
	if fallback.tracker.Get(types.KindAdvice).Status != types.StatusIdle {
		t.Fatalf("configuration error must not touch progress")
	}
}

func TestGenerationIncludeFlagsSelectLanguages(t *testing.T) {
	env := newTestEnv(t, stub.New(""), testItems(1), nil)
	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{IncludeJA: boolPtr(true), IncludeEN: boolPtr(false)})
	if len(sum.Languages) != 1 || sum.Languages[0] != "ja" || sum.TotalItems != 1 {
		t.Fatalf("unexpected languages: %+v", sum)
	}
}

// recordingProvider keeps the last request of each mode.
type recordingProvider struct {
	mu         sync.Mutex
	textCalls  int
	visionMsgs [][]llm.Message
	textMsgs   [][]llm.Message
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) GenerateText(ctx context.Context, msgs []llm.Message, opts llm.Options) (llm.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textCalls++
	p.textMsgs = append(p.textMsgs, msgs)
	return llm.Result{Content: "text", Model: "rec"}, nil
}

func (p *recordingProvider) GenerateVision(ctx context.Context, msgs []llm.Message, opts llm.Options) (llm.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visionMsgs = append(p.visionMsgs, msgs)
	return llm.Result{Content: "vision", Model: "rec"}, nil
}

func TestGenerationVisionAndContext(t *testing.T) {
	items := testItems(2)
	items[0].ImageURLs = []string{"https://example.com/a.png"}
	p := &recordingProvider{}
	env := newTestEnv(t, p, items, nil)
	seedStoreVersion(t, env.store, types.KindAdvice, "advice-seed", time.Now().UTC(), []string{"en"}, "a-item", "b-item")

	runToEnd(t, env, types.KindVirtualEvidence, GenerationRequest{Languages: []string{"en"}, IncludeContext: true})
	if len(p.visionMsgs) != 1 || p.textCalls != 1 {
		t.Fatalf("vision=%d text=%d", len(p.visionMsgs), p.textCalls)
	}
	if !p.visionMsgs[0][1].HasImages() {
		t.Fatalf("vision call should carry the item image")
	}
	if !strings.Contains(p.textMsgs[0][1].Text(), "advice-seed/b-item/en") {
		t.Fatalf("advice context missing from prompt: %q", p.textMsgs[0][1].Text())
	}
}

func TestGenerationRetriesRetryableErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	p := stub.New("").WithFailure(func(_ []llm.Message, _ llm.Options) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return &llm.ProviderError{Provider: "stub", StatusCode: 503, Message: "overloaded"}
		}
		return nil
	})
	env := newTestEnv(t, p, testItems(1), func(c *GenerationConfig) {
		c.RetryAttempts = 2
		c.RetryBackoff = time.Millisecond
	})
	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"en"}})
	if len(sum.Errors) != 0 || sum.Results["en"].Generated != 1 || p.Calls() != 2 {
		t.Fatalf("retry did not recover: %+v calls=%d", sum, p.Calls())
	}
}

// sleepLog records requested waits without blocking.
type sleepLog struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.mu.Lock()
	l.waits = append(l.waits, d)
	l.mu.Unlock()
	return ctx.Err()
}

func (l *sleepLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waits)
}

func TestGenerationCallDelayFollowsProviderCalls(t *testing.T) {
	const delay = 250 * time.Millisecond
	p := stub.New("")
	env := newTestEnv(t, p, testItems(4), func(c *GenerationConfig) { c.CallDelay = delay })
	waits := &sleepLog{}
	env.svc.(*generationService).sleep = waits.sleep

	// Four generated items: a delay after each call except the last.
	runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"ja"}})
	if waits.count() != 3 {
		t.Fatalf("fresh run: want 3 delays, got %v", waits.waits)
	}
	for _, d := range waits.waits {
		if d != delay {
			t.Fatalf("delay=%v want %v", d, delay)
		}
	}

	// All cache hits: no provider calls, no delays.
	waits.waits = nil
	runToEnd(t, env, types.KindAdvice, GenerationRequest{Languages: []string{"ja"}})
	if waits.count() != 0 || p.Calls() != 4 {
		t.Fatalf("cached run: delays=%v calls=%d", waits.waits, p.Calls())
	}

	// a generated, b cached, c generated, d generated last: delays after a and c only.
	waits.waits = nil
	seedStoreVersion(t, env.store, types.KindVirtualEvidence, "virtual_evidence-seed", time.Now().UTC(), []string{"ja"}, "b-item")
	sum := runToEnd(t, env, types.KindVirtualEvidence, GenerationRequest{Languages: []string{"ja"}})
	if got := sum.Results["ja"]; got.Generated != 3 || got.FromCache != 1 {
		t.Fatalf("mixed run results: %+v", got)
	}
	if waits.count() != 2 {
		t.Fatalf("mixed run: want 2 delays, got %v", waits.waits)
	}
}

func TestGenerationDefaultFlagsFollowConfiguredLanguages(t *testing.T) {
	env := newTestEnv(t, stub.New(""), testItems(1), func(c *GenerationConfig) {
		c.SupportedLanguages = []string{"en", "ko"}
	})
	sum := runToEnd(t, env, types.KindAdvice, GenerationRequest{})
	if len(sum.Languages) != 1 || sum.Languages[0] != "en" {
		t.Fatalf("languages=%v, want [en]", sum.Languages)
	}

	_, err := env.svc.Start(context.Background(), types.KindAdvice, GenerationRequest{IncludeJA: boolPtr(true)})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("explicit ja on an en/ko deployment: want ErrConfiguration, got %v", err)
	}
}
