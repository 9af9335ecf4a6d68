package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/checklist-advisor/internal/data/db"
	"github.com/yungbote/checklist-advisor/internal/data/repos/testutil"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
	"github.com/yungbote/checklist-advisor/internal/services"
)

func TestLoadConfigCopiesSamplingIntoGeneration(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_MAX_TOKENS", "512")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GENERATION_CALL_DELAY", "250ms")
	t.Setenv("CATALOG_FILE", "items.yaml")

	cfg := LoadConfig()
	if cfg.Addr != ":9090" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
	if cfg.Generation.Temperature != 0.2 || cfg.Generation.MaxTokens != 512 {
		t.Fatalf("sampling not copied: %+v", cfg.Generation)
	}
	if cfg.Generation.CallDelay != 250*time.Millisecond {
		t.Fatalf("call delay: %v", cfg.Generation.CallDelay)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins: %v", cfg.AllowedOrigins)
	}
	if cfg.CatalogFile != "items.yaml" {
		t.Fatalf("catalog file: %q", cfg.CatalogFile)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CA_DOTENV_NEW=from-file\nCA_DOTENV_SET=from-file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CA_DOTENV_SET", "from-env")
	t.Setenv("CA_DOTENV_NEW", "")
	os.Unsetenv("CA_DOTENV_NEW")

	LoadDotEnv(testutil.Logger(t), path, filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("CA_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("new var: %q", got)
	}
	if got := os.Getenv("CA_DOTENV_SET"); got != "from-env" {
		t.Fatalf("existing var overridden: %q", got)
	}
}

const appCatalog = `items:
  - id: backup-policy
    category: Operations
    title: Backups
  - id: mfa
    category: Access control
    title: MFA
`

func TestNewWithConfigWiresGenerationEndToEnd(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "items.yaml")
	if err := os.WriteFile(catalogPath, []byte(appCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	gen := services.DefaultGenerationConfig()
	gen.CallDelay = 0

	cfg := Config{
		Addr:        ":0",
		CatalogFile: catalogPath,
		DB:          db.Config{Driver: "sqlite", DSN: filepath.Join(dir, "cache.db")},
		LLM:         llm.Config{Provider: "stub", StubText: "Keep an offline copy."},
		Artifact:    artifact.Config{Backend: "local", LocalDir: filepath.Join(dir, "exports")},
		Generation:  gen,
	}

	ctx := context.Background()
	a, err := NewWithConfig(ctx, testutil.Logger(t), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	summary, err := a.Services.Generation.Run(ctx, types.KindAdvice, services.GenerationRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != types.StatusCompleted {
		t.Fatalf("status: %s errors=%+v", summary.Status, summary.Errors)
	}
	if got := summary.Results["ja"].Generated + summary.Results["en"].Generated; got != 4 {
		t.Fatalf("generated: %+v", summary.Results)
	}

	res, err := a.Services.Reader.Lookup(ctx, types.KindAdvice, "mfa", "en")
	if err != nil || !res.Found || res.Body != "Keep an offline copy." {
		t.Fatalf("lookup: %v %+v", err, res)
	}

	exported := filepath.Join(dir, "exports", artifact.Key(string(types.KindAdvice), summary.Version))
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("export artifact missing: %v", err)
	}
}

func TestNewWithConfigRejectsUnknownProvider(t *testing.T) {
	cfg := Config{
		DB:  db.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cache.db")},
		LLM: llm.Config{Provider: "nope"},
	}
	if _, err := NewWithConfig(context.Background(), testutil.Logger(t), cfg); err == nil {
		t.Fatalf("expected provider error")
	}
}
