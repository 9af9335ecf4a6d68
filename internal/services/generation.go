package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/envutil"
	"github.com/yungbote/checklist-advisor/internal/platform/httpx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type GenerationConfig struct {
	CallDelay          time.Duration
	FailureThreshold   int
	RetryAttempts      int
	RetryBackoff       time.Duration
	ParallelLanguages  bool
	SupportedLanguages []string
	Temperature        float64
	MaxTokens          int
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		CallDelay:          time.Second,
		FailureThreshold:   3,
		RetryBackoff:       2 * time.Second,
		SupportedLanguages: []string{"ja", "en"},
	}
}

func GenerationConfigFromEnv() GenerationConfig {
	def := DefaultGenerationConfig()
	return GenerationConfig{
		CallDelay:          envutil.Duration("GENERATION_CALL_DELAY", def.CallDelay),
		FailureThreshold:   envutil.Int("GENERATION_FAILURE_THRESHOLD", def.FailureThreshold),
		RetryAttempts:      envutil.Int("GENERATION_RETRY_ATTEMPTS", def.RetryAttempts),
		RetryBackoff:       envutil.Duration("GENERATION_RETRY_BACKOFF", def.RetryBackoff),
		ParallelLanguages:  envutil.Bool("GENERATION_PARALLEL_LANGUAGES", false),
		SupportedLanguages: envutil.List("SUPPORTED_LANGUAGES", def.SupportedLanguages),
	}
}

// GenerationRequest selects what a run produces. Languages wins over the
// include flags; a nil flag counts as true.
type GenerationRequest struct {
	ForceRegenerate bool     `json:"force_regenerate"`
	Languages       []string `json:"languages,omitempty"`
	IncludeJA       *bool    `json:"include_ja,omitempty"`
	IncludeEN       *bool    `json:"include_en,omitempty"`
	IncludeContext  bool     `json:"include_context"`
	Description     string   `json:"description,omitempty"`
}

type LanguageResult struct {
	Generated int `json:"generated"`
	FromCache int `json:"from_cache"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type RunSummary struct {
	Version    string                    `json:"version"`
	Kind       types.Kind                `json:"kind"`
	Status     types.RunStatus           `json:"status"`
	TotalItems int                       `json:"total_items"`
	Languages  []string                  `json:"languages"`
	Results    map[string]LanguageResult `json:"results"`
	Errors     []types.ProgressError     `json:"errors"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// RunHandle identifies a started run. Wait blocks until it finishes.
type RunHandle struct {
	Kind       types.Kind `json:"kind"`
	Version    string     `json:"version"`
	TotalItems int        `json:"total_items"`
	Languages  []string   `json:"languages"`

	run *generationRun
}

func (h RunHandle) Done() <-chan struct{} { return h.run.done }

func (h RunHandle) Wait(ctx context.Context) (*RunSummary, error) {
	select {
	case <-h.run.done:
		s := h.run.summary
		return &s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type GenerationService interface {
	// Start prepares a run synchronously and executes it in the background.
	Start(ctx context.Context, kind types.Kind, req GenerationRequest) (RunHandle, error)
	// Run starts a run and waits for it; canceling ctx cancels the run.
	Run(ctx context.Context, kind types.Kind, req GenerationRequest) (*RunSummary, error)
	Cancel(kind types.Kind) error
	Progress(kind types.Kind) types.ProgressState
}

type generationService struct {
	log      *logger.Logger
	cfg      GenerationConfig
	provider llm.Provider
	store    CacheStore
	catalog  Catalog
	tracker  ProgressTracker
	now      func() time.Time
	// sleep waits between provider calls and before retries.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active map[types.Kind]*generationRun
}

type generationRun struct {
	kind    types.Kind
	version string
	req     GenerationRequest
	langs   []string
	items   []*types.ChecklistItem
	total   int
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	completed int
	summary   RunSummary
}

type itemOutcome int

const (
	outcomeGenerated itemOutcome = iota
	outcomeCached
	outcomeFailed
)

func NewGenerationService(
	baseLog *logger.Logger,
	cfg GenerationConfig,
	provider llm.Provider,
	store CacheStore,
	catalog Catalog,
	tracker ProgressTracker,
) GenerationService {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultGenerationConfig().FailureThreshold
	}
	if len(cfg.SupportedLanguages) == 0 {
		cfg.SupportedLanguages = DefaultGenerationConfig().SupportedLanguages
	}
	return &generationService{
		log:      baseLog.With("service", "GenerationService"),
		cfg:      cfg,
		provider: provider,
		store:    store,
		catalog:  catalog,
		tracker:  tracker,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    httpx.Sleep,
		active:   map[types.Kind]*generationRun{},
	}
}

func (s *generationService) Progress(kind types.Kind) types.ProgressState {
	return s.tracker.Get(kind)
}

func (s *generationService) Start(ctx context.Context, kind types.Kind, req GenerationRequest) (RunHandle, error) {
	if !kind.Valid() {
		return RunHandle{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	langs, err := s.resolveLanguages(req)
	if err != nil {
		return RunHandle{}, err
	}
	if s.provider == nil || llm.IsFallback(s.provider) {
		return RunHandle{}, fmt.Errorf("%w: no provider credentials configured (set LLM_PROVIDER=stub to use the stub explicitly)", ErrConfiguration)
	}

	r := &generationRun{kind: kind, req: req, langs: langs, done: make(chan struct{})}
	s.mu.Lock()
	if _, busy := s.active[kind]; busy {
		s.mu.Unlock()
		return RunHandle{}, fmt.Errorf("%w: %s", ErrRunInProgress, kind)
	}
	s.active[kind] = r
	s.mu.Unlock()

	if err := s.prepare(ctx, r); err != nil {
		s.release(r)
		return RunHandle{}, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	r.cancel = cancel
	s.mu.Unlock()
	go s.execute(runCtx, r)

	return RunHandle{Kind: kind, Version: r.version, TotalItems: r.total, Languages: langs, run: r}, nil
}

func (s *generationService) Run(ctx context.Context, kind types.Kind, req GenerationRequest) (*RunSummary, error) {
	h, err := s.Start(ctx, kind, req)
	if err != nil {
		return nil, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.run.cancel()
		<-h.Done()
	}
	sum := h.run.summary
	return &sum, nil
}

func (s *generationService) Cancel(kind types.Kind) error {
	s.mu.Lock()
	r, ok := s.active[kind]
	var cancel context.CancelFunc
	if ok {
		cancel = r.cancel
	}
	s.mu.Unlock()
	if cancel == nil {
		return fmt.Errorf("%w: no active run for %s", ErrNotFound, kind)
	}
	s.log.Info("generation cancel requested", "kind", kind, "version", r.version)
	cancel()
	return nil
}

func (s *generationService) release(r *generationRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[r.kind] == r {
		delete(s.active, r.kind)
	}
}

func (s *generationService) resolveLanguages(req GenerationRequest) ([]string, error) {
	supported := map[string]bool{}
	for _, l := range s.cfg.SupportedLanguages {
		supported[l] = true
	}

	var requested []string
	if len(req.Languages) > 0 {
		requested = req.Languages
	} else {
		// An omitted flag only selects its language when it is configured;
		// an explicit true for an unconfigured language is an error below.
		for _, f := range []struct {
			lang string
			set  *bool
		}{{"ja", req.IncludeJA}, {"en", req.IncludeEN}} {
			if (f.set == nil && supported[f.lang]) || (f.set != nil && *f.set) {
				requested = append(requested, f.lang)
			}
		}
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(requested))
	for _, l := range requested {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		if !supported[l] {
			return nil, fmt.Errorf("%w: unsupported language %q", ErrConfiguration, l)
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no languages selected", ErrConfiguration)
	}
	return out, nil
}

// prepare writes the version row and arms progress before any entry can be written.
func (s *generationService) prepare(ctx context.Context, r *generationRun) error {
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return fmt.Errorf("load checklist items: %w", err)
	}
	r.items = items
	r.total = len(items) * len(r.langs)

	started := s.now()
	version := types.NewVersionID(r.kind, started)
	for {
		existing, err := s.store.GetVersion(ctx, r.kind, version)
		if err != nil {
			return err
		}
		if existing == nil {
			break
		}
		started = started.Add(time.Microsecond)
		version = types.NewVersionID(r.kind, started)
	}
	r.version = version

	opts, _ := json.Marshal(r.req)
	if err := s.store.PutVersion(ctx, &types.CacheVersion{
		Version:     version,
		Kind:        r.kind,
		Description: r.req.Description,
		TotalItems:  r.total,
		Languages:   r.langs,
		Options:     opts,
		CreatedAt:   started,
	}); err != nil {
		return fmt.Errorf("create cache version: %w", err)
	}

	r.summary = RunSummary{
		Version:    version,
		Kind:       r.kind,
		Status:     types.StatusRunning,
		TotalItems: r.total,
		Languages:  r.langs,
		Results:    map[string]LanguageResult{},
		Errors:     []types.ProgressError{},
		StartedAt:  started,
	}
	for _, l := range r.langs {
		r.summary.Results[l] = LanguageResult{}
	}

	s.tracker.Reset(r.kind)
	s.tracker.Update(r.kind, types.ProgressUpdate{
		Status:         ptr(types.StatusRunning),
		Version:        ptr(version),
		TotalItems:     ptr(r.total),
		CompletedItems: ptr(0),
		StartTime:      ptr(started),
	})
	s.log.Info("generation started",
		"kind", r.kind, "version", version, "languages", r.langs,
		"items", len(items), "total", r.total, "force", r.req.ForceRegenerate,
		"provider", s.provider.Name())
	return nil
}

func (s *generationService) execute(ctx context.Context, r *generationRun) {
	defer close(r.done)
	defer s.release(r)
	defer r.cancel()

	if s.cfg.ParallelLanguages && len(r.langs) > 1 {
		var g errgroup.Group
		for _, lang := range r.langs {
			lang := lang
			g.Go(func() error {
				s.runLanguage(ctx, r, lang)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, lang := range r.langs {
			if ctx.Err() != nil {
				break
			}
			s.runLanguage(ctx, r, lang)
		}
	}

	finished := s.now()
	r.mu.Lock()
	r.summary.FinishedAt = finished
	r.mu.Unlock()

	if ctx.Err() != nil {
		perr := types.ProgressError{Language: strings.Join(r.langs, ","), Message: "canceled", Timestamp: finished}
		r.mu.Lock()
		r.summary.Status = types.StatusFailed
		r.summary.Errors = append(r.summary.Errors, perr)
		r.mu.Unlock()
		s.tracker.Update(r.kind, types.ProgressUpdate{
			Status:       ptr(types.StatusFailed),
			EndTime:      ptr(finished),
			AppendErrors: []types.ProgressError{perr},
		})
		s.log.Warn("generation canceled", "kind", r.kind, "version", r.version, "completed", r.completed, "total", r.total)
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := s.store.PersistExport(persistCtx, r.kind, r.version); err != nil {
		s.log.Warn("failed to persist export artifact", "kind", r.kind, "version", r.version, "error", err)
	}

	r.mu.Lock()
	r.summary.Status = types.StatusCompleted
	r.mu.Unlock()
	s.tracker.Update(r.kind, types.ProgressUpdate{
		Status:  ptr(types.StatusCompleted),
		EndTime: ptr(finished),
	})
	s.log.Info("generation completed",
		"kind", r.kind, "version", r.version, "errors", len(r.summary.Errors),
		"duration", finished.Sub(r.summary.StartedAt).String())
}

func (s *generationService) runLanguage(ctx context.Context, r *generationRun, lang string) {
	consecutive := 0
	for i, item := range r.items {
		if ctx.Err() != nil {
			return
		}
		s.tracker.Update(r.kind, types.ProgressUpdate{
			CurrentLanguage:  ptr(lang),
			CurrentItem:      ptr(item.ID),
			CurrentItemTitle: ptr(item.Title),
		})

		outcome, called, err := s.processItem(ctx, r, lang, item)
		switch outcome {
		case outcomeCached, outcomeGenerated:
			consecutive = 0
			r.advance(s.tracker, lang, outcome, nil)
		case outcomeFailed:
			consecutive++
			perr := types.ProgressError{ItemID: item.ID, Language: lang, Message: err.Error(), Timestamp: s.now()}
			s.log.Warn("generation failed for item",
				"kind", r.kind, "version", r.version, "item_id", item.ID, "language", lang,
				"consecutive", consecutive, "error", err)
			r.advance(s.tracker, lang, outcome, &perr)
		}

		remaining := len(r.items) - i - 1
		if consecutive >= s.cfg.FailureThreshold && remaining > 0 {
			s.log.Warn("too many consecutive failures; skipping rest of language",
				"kind", r.kind, "version", r.version, "language", lang, "skipped", remaining)
			r.skip(s.tracker, lang, remaining)
			return
		}
		if called && remaining > 0 && s.cfg.CallDelay > 0 {
			if err := s.sleep(ctx, s.cfg.CallDelay); err != nil {
				return
			}
		}
	}
}

// processItem reports whether the provider was called alongside the outcome.
func (s *generationService) processItem(ctx context.Context, r *generationRun, lang string, item *types.ChecklistItem) (itemOutcome, bool, error) {
	if !r.req.ForceRegenerate {
		hit, err := s.store.GetEntry(ctx, r.kind, item.ID, lang, "")
		if err != nil {
			s.log.Warn("cache lookup failed; generating", "kind", r.kind, "item_id", item.ID, "language", lang, "error", err)
		} else if hit != nil {
			return outcomeCached, false, nil
		}
	}

	in := PromptInput{
		Kind:     r.kind,
		Item:     item,
		Language: lang,
		Vision:   r.kind == types.KindVirtualEvidence && item.HasImages(),
	}
	if r.req.IncludeContext {
		if adv, err := s.store.GetEntry(ctx, types.KindAdvice, item.ID, lang, ""); err == nil && adv != nil {
			in.PriorAdvice = adv.Body
		}
	}

	res, err := s.generate(ctx, in, llm.Options{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Tags: map[string]string{
			"kind":     string(r.kind),
			"item_id":  item.ID,
			"language": lang,
		},
	})
	if err != nil {
		return outcomeFailed, true, err
	}

	// The call already happened; keep its result even if the run was canceled meanwhile.
	err = s.store.PutEntry(context.WithoutCancel(ctx), &types.CacheEntry{
		Kind:      r.kind,
		ItemID:    item.ID,
		Language:  lang,
		Version:   r.version,
		Category:  item.Category,
		Title:     item.Title,
		Body:      res.Content,
		Model:     res.Model,
		CreatedAt: s.now(),
	})
	if err != nil {
		return outcomeFailed, true, fmt.Errorf("store entry: %w", err)
	}
	return outcomeGenerated, true, nil
}

// generate calls the provider outside the run's cancellation and retries
// retryable failures up to RetryAttempts times.
func (s *generationService) generate(ctx context.Context, in PromptInput, opts llm.Options) (llm.Result, error) {
	msgs := BuildPrompt(in)
	callCtx := context.WithoutCancel(ctx)
	for attempt := 0; ; attempt++ {
		var (
			res llm.Result
			err error
		)
		if in.Vision {
			res, err = s.provider.GenerateVision(callCtx, msgs, opts)
		} else {
			res, err = s.provider.GenerateText(callCtx, msgs, opts)
		}
		if err == nil && strings.TrimSpace(res.Content) == "" {
			err = llm.ErrEmptyCompletion
		}
		if err == nil {
			return res, nil
		}
		if attempt >= s.cfg.RetryAttempts || !httpx.IsRetryableError(err) {
			return llm.Result{}, err
		}
		wait := httpx.RetryDelay(err, s.cfg.RetryBackoff, attempt)
		s.log.Debug("retrying provider call", "item_id", in.Item.ID, "language", in.Language, "attempt", attempt+1, "wait", wait.String(), "error", err)
		if serr := s.sleep(ctx, wait); serr != nil {
			return llm.Result{}, err
		}
	}
}

// advance counts one processed pair. The tracker update happens under r.mu so
// parallel languages publish completed_items in order.
func (r *generationRun) advance(tracker ProgressTracker, lang string, outcome itemOutcome, perr *types.ProgressError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.summary.Results[lang]
	switch outcome {
	case outcomeGenerated:
		res.Generated++
	case outcomeCached:
		res.FromCache++
	case outcomeFailed:
		res.Failed++
	}
	r.summary.Results[lang] = res
	r.completed++

	upd := types.ProgressUpdate{CompletedItems: ptr(r.completed)}
	if perr != nil {
		r.summary.Errors = append(r.summary.Errors, *perr)
		upd.AppendErrors = []types.ProgressError{*perr}
	}
	tracker.Update(r.kind, upd)
}

func (r *generationRun) skip(tracker ProgressTracker, lang string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.summary.Results[lang]
	res.Skipped += n
	r.summary.Results[lang] = res
	r.completed += n
	tracker.Update(r.kind, types.ProgressUpdate{CompletedItems: ptr(r.completed)})
}
