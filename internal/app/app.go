package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/checklist-advisor/internal/data/db"
	apphttp "github.com/yungbote/checklist-advisor/internal/http"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/llm/providers"
	"github.com/yungbote/checklist-advisor/internal/observability"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
	"github.com/yungbote/checklist-advisor/internal/realtime/bus"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Cfg       Config
	Repos     Repos
	Services  Services
	Handlers  Handlers
	Server    *apphttp.Server
	SSEHub    *realtime.SSEHub
	Bus       bus.Bus
	Provider  llm.Provider
	Artifacts artifact.Store

	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the full object graph from the environment. On error every
// resource opened so far is released.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	LoadDotEnv(log)
	return NewWithConfig(ctx, log, LoadConfig())
}

func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (a *App, err error) {
	a = &App{Log: log, Cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	a.dbService, err = db.NewService(cfg.DB, log)
	if err != nil {
		return a, fmt.Errorf("init db: %w", err)
	}
	a.DB = a.dbService.DB()
	if err = db.AutoMigrateAll(a.DB); err != nil {
		return a, fmt.Errorf("auto migrate: %w", err)
	}

	a.Provider, err = providers.New(ctx, cfg.LLM, log)
	if err != nil {
		return a, fmt.Errorf("init llm provider: %w", err)
	}
	if llm.IsFallback(a.Provider) {
		log.Warn("No LLM provider configured; generation is disabled", "provider", a.Provider.Name())
	}

	a.Artifacts, err = artifact.New(ctx, cfg.Artifact, log)
	if err != nil {
		return a, fmt.Errorf("init artifact store: %w", err)
	}

	a.SSEHub = realtime.NewSSEHub(log)
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: a.SSEHub}
	if cfg.Redis.Addr != "" {
		b, berr := bus.NewRedisBus(cfg.Redis, log)
		if berr != nil {
			log.Warn("Redis bus unavailable; progress stays local to this process", "error", berr)
		} else {
			a.Bus = b
			emitter = &services.RedisEmitter{Bus: b, Local: a.SSEHub, Log: log}
		}
	}

	a.Repos = wireRepos(a.DB, log)
	a.Services, err = wireServices(a.DB, log, cfg, a.Repos, a.Provider, a.Artifacts, emitter)
	if err != nil {
		return a, err
	}
	a.Handlers = wireHandlers(log, cfg, a.Services, a.Provider, a.SSEHub)
	a.Server = wireServer(log, cfg, a.Handlers)
	return a, nil
}

// Start begins progress fan-out. With a Redis bus, messages published by any
// replica reach this process's hub through the forwarder.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start redis forwarder: %w", err)
		}
	}
	a.Services.Broadcaster.Start()
	return nil
}

func (a *App) Run() error {
	a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr)
	return a.Server.Run(a.Cfg.Addr)
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.Services.Broadcaster.Stop()

	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Artifacts != nil {
		errs = append(errs, artifact.Close(a.Artifacts))
	}
	if a.Provider != nil {
		errs = append(errs, llm.Close(a.Provider))
	}
	if a.dbService != nil {
		errs = append(errs, a.dbService.Close())
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn("Errors during shutdown", "error", err)
	}
	a.Log.Sync()
}
