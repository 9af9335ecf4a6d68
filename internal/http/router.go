package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/checklist-advisor/internal/http/handlers"
	httpMW "github.com/yungbote/checklist-advisor/internal/http/middleware"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	HealthHandler     *httpH.HealthHandler
	ContentHandler    *httpH.ContentHandler
	GenerationHandler *httpH.GenerationHandler
	CacheHandler      *httpH.CacheHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestContext(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// End-user read path
	if cfg.ContentHandler != nil {
		api.GET("/content/:kind/items/:itemId", cfg.ContentHandler.GetItem)
	}

	admin := api.Group("/admin")
	{
		if cfg.GenerationHandler != nil {
			admin.POST("/generation/:kind", cfg.GenerationHandler.Trigger)
			admin.POST("/generation/:kind/cancel", cfg.GenerationHandler.Cancel)
			admin.GET("/generation/:kind/progress", cfg.GenerationHandler.Progress)
			admin.GET("/generation/:kind/progress/stream", cfg.GenerationHandler.ProgressStream)
		}

		if cfg.CacheHandler != nil {
			admin.GET("/cache/:kind/versions", cfg.CacheHandler.ListVersions)
			admin.GET("/cache/:kind/stats", cfg.CacheHandler.Stats)
			admin.GET("/cache/:kind/versions/:version/export", cfg.CacheHandler.Export)
			admin.POST("/cache/:kind/import", cfg.CacheHandler.Import)
			admin.DELETE("/cache/:kind/versions/:version", cfg.CacheHandler.DeleteVersion)
		}
	}

	return r
}
