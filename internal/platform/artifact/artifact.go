// Package artifact stores exported cache versions on durable secondary storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yungbote/checklist-advisor/internal/platform/envutil"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

var ErrNotFound = errors.New("artifact not found")

type Store interface {
	Name() string
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrNotFound when the object does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is a no-op for missing objects.
	Delete(ctx context.Context, key string) error
}

// Key is the object key for one exported version.
func Key(kind, version string) string {
	return path.Join(kind, version+".json")
}

type Config struct {
	// Backend is one of "none", "local", "gcs", "minio".
	Backend string
	Prefix  string

	LocalDir string

	GCSBucket       string
	GCSEmulatorHost string
	GCSCredentials  string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func ConfigFromEnv() Config {
	return Config{
		Backend:         strings.ToLower(envutil.String("ARTIFACT_BACKEND", "local")),
		Prefix:          envutil.String("ARTIFACT_PREFIX", "content-cache"),
		LocalDir:        envutil.String("ARTIFACT_DIR", "./data/exports"),
		GCSBucket:       envutil.String("ARTIFACT_GCS_BUCKET", ""),
		GCSEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		GCSCredentials:  envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
		MinioEndpoint:   envutil.String("MINIO_ENDPOINT", ""),
		MinioAccessKey:  envutil.String("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  envutil.String("MINIO_SECRET_KEY", ""),
		MinioBucket:     envutil.String("MINIO_BUCKET", ""),
		MinioUseSSL:     envutil.Bool("MINIO_USE_SSL", false),
	}
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (Store, error) {
	serviceLog := log.With("service", "ArtifactStore")
	var (
		st  Store
		err error
	)
	switch cfg.Backend {
	case "", "none", "off":
		st = None{}
	case "local", "fs":
		st, err = NewLocal(cfg.LocalDir)
	case "gcs":
		st, err = NewGCS(ctx, cfg)
	case "minio", "s3":
		st, err = NewMinio(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported ARTIFACT_BACKEND %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Prefix != "" && st.Name() != "none" {
		st = &prefixed{Store: st, prefix: strings.Trim(cfg.Prefix, "/")}
	}
	serviceLog.Info("artifact store ready", "backend", st.Name(), "prefix", cfg.Prefix)
	return st, nil
}

type prefixed struct {
	Store
	prefix string
}

func (p *prefixed) Put(ctx context.Context, key string, data []byte) error {
	return p.Store.Put(ctx, path.Join(p.prefix, key), data)
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Get(ctx, path.Join(p.prefix, key))
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, path.Join(p.prefix, key))
}

// None discards writes and never finds anything.
type None struct{}

func (None) Name() string                                { return "none" }
func (None) Put(context.Context, string, []byte) error   { return nil }
func (None) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (None) Delete(context.Context, string) error        { return nil }

func (p *prefixed) Close() error { return Close(p.Store) }

// Close releases the store's client when it holds one.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
