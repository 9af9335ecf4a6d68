package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type Services struct {
	Catalog     services.Catalog
	Cache       services.CacheStore
	Progress    services.ProgressTracker
	Generation  services.GenerationService
	Reader      services.ContentReader
	Broadcaster *services.ProgressBroadcaster
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	reposet Repos,
	provider llm.Provider,
	artifacts artifact.Store,
	emitter services.SSEEmitter,
) (Services, error) {
	log.Info("Wiring services...")

	var catalog services.Catalog
	if cfg.CatalogFile != "" {
		fileCatalog, err := services.LoadFileCatalog(cfg.CatalogFile)
		if err != nil {
			return Services{}, fmt.Errorf("load catalog: %w", err)
		}
		log.Info("Using file catalog", "path", cfg.CatalogFile, "items", len(fileCatalog))
		catalog = fileCatalog
	} else {
		catalog = services.NewDBCatalog(reposet.ChecklistItem)
	}

	cache := services.NewCacheStore(db, log, reposet.CacheEntry, reposet.CacheVersion, artifacts, cfg.Generation.SupportedLanguages)
	progress := services.NewProgressTracker(log)
	generation := services.NewGenerationService(log, cfg.Generation, provider, cache, catalog, progress)
	reader := services.NewContentReader(log, cache, catalog, provider, cfg.Generation)

	var broadcaster *services.ProgressBroadcaster
	if emitter != nil {
		broadcaster = services.NewProgressBroadcaster(progress, emitter, log)
	}

	return Services{
		Catalog:     catalog,
		Cache:       cache,
		Progress:    progress,
		Generation:  generation,
		Reader:      reader,
		Broadcaster: broadcaster,
	}, nil
}
