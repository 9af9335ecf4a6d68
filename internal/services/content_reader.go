package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type ContentResult struct {
	ItemID    string `json:"item_id"`
	Language  string `json:"language"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	Version   string `json:"version,omitempty"`
	FromCache bool   `json:"from_cache"`
	Found     bool   `json:"found"`
}

// ContentReader is the end-user read path. A miss is a normal result, not an error.
type ContentReader interface {
	Lookup(ctx context.Context, kind types.Kind, itemID, language string) (ContentResult, error)
	// LookupOrGenerate falls back to a one-off generation on a miss. The
	// generated text is not stored.
	LookupOrGenerate(ctx context.Context, kind types.Kind, itemID, language string) (ContentResult, error)
}

type contentReader struct {
	log      *logger.Logger
	store    CacheStore
	catalog  Catalog
	provider llm.Provider
	cfg      GenerationConfig
}

func NewContentReader(baseLog *logger.Logger, store CacheStore, catalog Catalog, provider llm.Provider, cfg GenerationConfig) ContentReader {
	return &contentReader{
		log:      baseLog.With("service", "ContentReader"),
		store:    store,
		catalog:  catalog,
		provider: provider,
		cfg:      cfg,
	}
}

func (r *contentReader) Lookup(ctx context.Context, kind types.Kind, itemID, language string) (ContentResult, error) {
	out := ContentResult{ItemID: itemID, Language: language}
	if !kind.Valid() {
		return out, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	e, err := r.store.GetEntry(ctx, kind, itemID, language, "")
	if err != nil {
		return out, err
	}
	if e == nil {
		return out, nil
	}
	out.Title = e.Title
	out.Body = e.Body
	out.Version = e.Version
	out.FromCache = true
	out.Found = true
	return out, nil
}

func (r *contentReader) LookupOrGenerate(ctx context.Context, kind types.Kind, itemID, language string) (ContentResult, error) {
	out, err := r.Lookup(ctx, kind, itemID, language)
	if err != nil || out.Found {
		return out, err
	}
	if r.provider == nil || llm.IsFallback(r.provider) {
		return out, nil
	}
	item, err := r.catalog.Item(ctx, itemID)
	if err != nil {
		return out, err
	}
	if item == nil {
		return out, nil
	}

	in := PromptInput{
		Kind:     kind,
		Item:     item,
		Language: language,
		Vision:   kind == types.KindVirtualEvidence && item.HasImages(),
	}
	msgs := BuildPrompt(in)
	opts := llm.Options{
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Tags:        map[string]string{"kind": string(kind), "item_id": itemID, "language": language, "path": "read"},
	}
	var res llm.Result
	if in.Vision {
		res, err = r.provider.GenerateVision(ctx, msgs, opts)
	} else {
		res, err = r.provider.GenerateText(ctx, msgs, opts)
	}
	if err != nil {
		r.log.Warn("on-demand generation failed", "kind", kind, "item_id", itemID, "language", language, "error", err)
		return out, fmt.Errorf("generate %s/%s: %w", itemID, language, err)
	}
	if strings.TrimSpace(res.Content) == "" {
		return out, llm.ErrEmptyCompletion
	}
	out.Title = item.Title
	out.Body = res.Content
	out.Found = true
	return out, nil
}
