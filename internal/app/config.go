package app

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/yungbote/checklist-advisor/internal/data/db"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/observability"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
	"github.com/yungbote/checklist-advisor/internal/platform/envutil"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime/bus"
	"github.com/yungbote/checklist-advisor/internal/services"
)

const serviceName = "checklist-advisor"

type Config struct {
	LogMode        string
	Addr           string
	AllowedOrigins []string
	// CatalogFile switches the item catalog from the checklist_item table to a YAML file.
	CatalogFile string

	DB         db.Config
	LLM        llm.Config
	Artifact   artifact.Config
	Redis      bus.RedisConfig
	Generation services.GenerationConfig
	Otel       observability.OtelConfig
}

func LoadConfig() Config {
	gen := services.GenerationConfigFromEnv()
	llmCfg := llm.ConfigFromEnv()
	gen.Temperature = llmCfg.Temperature
	gen.MaxTokens = llmCfg.MaxTokens

	return Config{
		LogMode:        envutil.String("LOG_MODE", "development"),
		Addr:           ":" + envutil.String("PORT", "8080"),
		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),
		CatalogFile:    envutil.String("CATALOG_FILE", ""),
		DB:             db.ConfigFromEnv(),
		LLM:            llmCfg,
		Artifact:       artifact.ConfigFromEnv(),
		Redis:          bus.RedisConfigFromEnv(),
		Generation:     gen,
		Otel:           observability.OtelConfigFromEnv(serviceName),
	}
}

// LoadDotEnv reads .env style files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(log *logger.Logger, files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("failed to load env file", "file", f, "error", err)
			}
			continue
		}
		log.Debug("loaded env file", "file", f)
	}
}
