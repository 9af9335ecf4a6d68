package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/checklist-advisor/internal/data/repos"
	"github.com/yungbote/checklist-advisor/internal/data/repos/testutil"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
)

type testEnv struct {
	db      *gorm.DB
	store   CacheStore
	tracker ProgressTracker
	svc     GenerationService
}

func newTestStore(t *testing.T, art artifact.Store) (*gorm.DB, CacheStore) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	store := NewCacheStore(db, log,
		repos.NewCacheEntryRepo(db, log),
		repos.NewCacheVersionRepo(db, log),
		art,
		[]string{"ja", "en"},
	)
	return db, store
}

func newTestEnv(t *testing.T, provider llm.Provider, catalog Catalog, mutate func(*GenerationConfig)) *testEnv {
	t.Helper()
	log := testutil.Logger(t)
	db, store := newTestStore(t, artifact.None{})
	tracker := NewProgressTracker(log)
	cfg := DefaultGenerationConfig()
	cfg.CallDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return &testEnv{
		db:      db,
		store:   store,
		tracker: tracker,
		svc:     NewGenerationService(log, cfg, provider, store, catalog, tracker),
	}
}

func testItems(n int) StaticCatalog {
	out := make(StaticCatalog, 0, n)
	for i := 1; i <= n; i++ {
		id := string(rune('a'+i-1)) + "-item"
		out = append(out, &types.ChecklistItem{
			ID:               id,
			Category:         "Access control",
			Title:            "Title " + id,
			Description:      "Description " + id,
			RequiredEvidence: "Evidence " + id,
			SortOrder:        i,
		})
	}
	return out
}

func runToEnd(t *testing.T, env *testEnv, kind types.Kind, req GenerationRequest) *RunSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sum, err := env.svc.Run(ctx, kind, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sum
}

// recorder collects observer deliveries.
type recorder struct {
	mu     sync.Mutex
	states []types.ProgressState
}

func (r *recorder) observe(s types.ProgressState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []types.ProgressState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ProgressState, len(r.states))
	copy(out, r.states)
	return out
}

func boolPtr(b bool) *bool { return &b }
