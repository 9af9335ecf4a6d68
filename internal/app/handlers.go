package app

import (
	httpH "github.com/yungbote/checklist-advisor/internal/http/handlers"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Content    *httpH.ContentHandler
	Generation *httpH.GenerationHandler
	Cache      *httpH.CacheHandler
}

func wireHandlers(log *logger.Logger, cfg Config, svc Services, provider llm.Provider, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	defaultLang := "ja"
	if len(cfg.Generation.SupportedLanguages) > 0 {
		defaultLang = cfg.Generation.SupportedLanguages[0]
	}
	return Handlers{
		Health:     httpH.NewHealthHandler(provider),
		Content:    httpH.NewContentHandler(svc.Reader, defaultLang),
		Generation: httpH.NewGenerationHandler(log, svc.Generation, hub),
		Cache:      httpH.NewCacheHandler(svc.Cache),
	}
}
