package app

import (
	apphttp "github.com/yungbote/checklist-advisor/internal/http"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers) *apphttp.Server {
	routerServiceName := ""
	if cfg.Otel.Enabled {
		routerServiceName = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:               log,
		ServiceName:       routerServiceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		HealthHandler:     handlers.Health,
		ContentHandler:    handlers.Content,
		GenerationHandler: handlers.Generation,
		CacheHandler:      handlers.Cache,
	})
}
