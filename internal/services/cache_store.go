package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/checklist-advisor/internal/data/repos"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/artifact"
	"github.com/yungbote/checklist-advisor/internal/platform/dbctx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type CacheStore interface {
	// GetEntry reads the exact version when version is set, else the newest entry
	// across versions. A miss is (nil, nil).
	GetEntry(ctx context.Context, kind types.Kind, itemID, language, version string) (*types.CacheEntry, error)
	PutEntry(ctx context.Context, entry *types.CacheEntry) error
	PutVersion(ctx context.Context, v *types.CacheVersion) error
	GetVersion(ctx context.Context, kind types.Kind, version string) (*types.CacheVersion, error)
	ListVersions(ctx context.Context, kind types.Kind) ([]*types.CacheVersion, error)
	ListVersionsWithStats(ctx context.Context, kind types.Kind) ([]types.VersionWithStats, error)
	LatestVersion(ctx context.Context, kind types.Kind) (*types.CacheVersion, error)
	Stats(ctx context.Context, kind types.Kind, version string) (types.CacheStats, error)
	DeleteVersion(ctx context.Context, kind types.Kind, version string) error
	ExportVersion(ctx context.Context, kind types.Kind, version string) (*types.ExportPayload, error)
	ImportVersion(ctx context.Context, kind types.Kind, payload *types.ExportPayload) (types.ImportResult, error)
	// PersistExport writes the version's export to the artifact store.
	PersistExport(ctx context.Context, kind types.Kind, version string) error
}

type cacheStore struct {
	db        *gorm.DB
	log       *logger.Logger
	entries   repos.CacheEntryRepo
	versions  repos.CacheVersionRepo
	artifacts artifact.Store
	languages map[string]bool
}

func NewCacheStore(
	db *gorm.DB,
	baseLog *logger.Logger,
	entries repos.CacheEntryRepo,
	versions repos.CacheVersionRepo,
	artifacts artifact.Store,
	supportedLanguages []string,
) CacheStore {
	if artifacts == nil {
		artifacts = artifact.None{}
	}
	langs := make(map[string]bool, len(supportedLanguages))
	for _, l := range supportedLanguages {
		langs[l] = true
	}
	return &cacheStore{
		db:        db,
		log:       baseLog.With("service", "CacheStore"),
		entries:   entries,
		versions:  versions,
		artifacts: artifacts,
		languages: langs,
	}
}

func (s *cacheStore) GetEntry(ctx context.Context, kind types.Kind, itemID, language, version string) (*types.CacheEntry, error) {
	dbc := dbctx.With(ctx)
	if version == "" {
		return s.entries.GetLatest(dbc, kind, itemID, language)
	}
	e, err := s.entries.Get(dbc, kind, itemID, language, version)
	if err != nil || e != nil {
		return e, err
	}
	n, err := s.entries.CountByVersion(dbc, kind, version)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, nil
	}
	payload := s.loadArtifact(ctx, kind, version)
	if payload == nil {
		return nil, nil
	}
	for _, ee := range payload.EntriesByLanguage[language] {
		if ee.ItemID == itemID {
			return entryFromExport(kind, language, payload, ee), nil
		}
	}
	return nil, nil
}

func (s *cacheStore) PutEntry(ctx context.Context, entry *types.CacheEntry) error {
	if entry == nil {
		return nil
	}
	return dbctx.InTx(ctx, s.db, func(dbc dbctx.Context) error {
		ok, err := s.versions.Exists(dbc, entry.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrVersionMissing, entry.Version)
		}
		return s.entries.Upsert(dbc, []*types.CacheEntry{entry})
	})
}

func (s *cacheStore) PutVersion(ctx context.Context, v *types.CacheVersion) error {
	if v == nil || strings.TrimSpace(v.Version) == "" {
		return fmt.Errorf("version id required")
	}
	return s.versions.Upsert(dbctx.With(ctx), v)
}

func (s *cacheStore) GetVersion(ctx context.Context, kind types.Kind, version string) (*types.CacheVersion, error) {
	v, err := s.versions.Get(dbctx.With(ctx), version)
	if err != nil || v == nil {
		return nil, err
	}
	if v.Kind != kind {
		return nil, nil
	}
	return v, nil
}

func (s *cacheStore) ListVersions(ctx context.Context, kind types.Kind) ([]*types.CacheVersion, error) {
	return s.versions.List(dbctx.With(ctx), kind)
}

func (s *cacheStore) ListVersionsWithStats(ctx context.Context, kind types.Kind) ([]types.VersionWithStats, error) {
	vs, err := s.ListVersions(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]types.VersionWithStats, 0, len(vs))
	for _, v := range vs {
		st, err := s.entries.Stats(dbctx.With(ctx), kind, v.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, types.VersionWithStats{CacheVersion: *v, Stats: st})
	}
	return out, nil
}

func (s *cacheStore) LatestVersion(ctx context.Context, kind types.Kind) (*types.CacheVersion, error) {
	return s.versions.Latest(dbctx.With(ctx), kind)
}

func (s *cacheStore) Stats(ctx context.Context, kind types.Kind, version string) (types.CacheStats, error) {
	return s.entries.Stats(dbctx.With(ctx), kind, version)
}

// DeleteVersion removes the entries and then the version row in one
// transaction, then drops the exported artifact.
func (s *cacheStore) DeleteVersion(ctx context.Context, kind types.Kind, version string) error {
	err := dbctx.InTx(ctx, s.db, func(dbc dbctx.Context) error {
		v, err := s.versions.Get(dbc, version)
		if err != nil {
			return err
		}
		if v == nil || v.Kind != kind {
			return fmt.Errorf("%w: version %s", ErrNotFound, version)
		}
		n, err := s.entries.DeleteByVersion(dbc, kind, version)
		if err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if _, err := s.versions.Delete(dbc, version); err != nil {
			return fmt.Errorf("delete version: %w", err)
		}
		s.log.Info("cache version deleted", "kind", kind, "version", version, "entries", n)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.artifacts.Delete(ctx, artifact.Key(string(kind), version)); err != nil {
		s.log.Warn("failed to delete export artifact", "kind", kind, "version", version, "error", err)
	}
	return nil
}

// ExportVersion builds the portable payload from the database, falling back to
// the stored artifact when the database holds no entries for the version. An
// unknown version yields an empty payload.
func (s *cacheStore) ExportVersion(ctx context.Context, kind types.Kind, version string) (*types.ExportPayload, error) {
	payload, err := s.exportFromDB(ctx, kind, version)
	if err != nil {
		return nil, err
	}
	if payload.EntryCount() > 0 {
		return payload, nil
	}
	if fromArtifact := s.loadArtifact(ctx, kind, version); fromArtifact != nil {
		return fromArtifact, nil
	}
	return payload, nil
}

func (s *cacheStore) exportFromDB(ctx context.Context, kind types.Kind, version string) (*types.ExportPayload, error) {
	dbc := dbctx.With(ctx)
	payload := &types.ExportPayload{
		Version:           version,
		Kind:              kind,
		ExportedAt:        time.Now().UTC(),
		EntriesByLanguage: map[string][]types.ExportEntry{},
	}
	v, err := s.versions.Get(dbc, version)
	if err != nil {
		return nil, err
	}
	if v != nil && v.Kind == kind {
		payload.TotalItems = v.TotalItems
		payload.Description = v.Description
		for _, lang := range v.Languages {
			payload.EntriesByLanguage[lang] = []types.ExportEntry{}
		}
	}
	rows, err := s.entries.ListByVersion(dbc, kind, version)
	if err != nil {
		return nil, err
	}
	for _, e := range rows {
		payload.EntriesByLanguage[e.Language] = append(payload.EntriesByLanguage[e.Language], types.ExportEntry{
			ItemID:    e.ItemID,
			Category:  e.Category,
			Title:     e.Title,
			Body:      e.Body,
			CreatedAt: e.CreatedAt.UTC(),
			Version:   e.Version,
		})
	}
	return payload, nil
}

// loadArtifact never fails: a missing or unreadable artifact is logged and treated as absent.
func (s *cacheStore) loadArtifact(ctx context.Context, kind types.Kind, version string) *types.ExportPayload {
	raw, err := s.artifacts.Get(ctx, artifact.Key(string(kind), version))
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			s.log.Warn("export artifact unreadable", "kind", kind, "version", version, "error", err)
		}
		return nil
	}
	var p types.ExportPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("export artifact is not valid JSON", "kind", kind, "version", version, "error", err)
		return nil
	}
	if p.Version != version || (p.Kind != "" && p.Kind != kind) {
		s.log.Warn("export artifact does not match request", "kind", kind, "version", version, "artifact_version", p.Version)
		return nil
	}
	if p.EntriesByLanguage == nil {
		p.EntriesByLanguage = map[string][]types.ExportEntry{}
	}
	p.Kind = kind
	return &p
}

func (s *cacheStore) PersistExport(ctx context.Context, kind types.Kind, version string) error {
	payload, err := s.exportFromDB(ctx, kind, version)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := s.artifacts.Put(ctx, artifact.Key(string(kind), version), raw); err != nil {
		return fmt.Errorf("store export artifact: %w", err)
	}
	s.log.Info("export artifact stored", "kind", kind, "version", version, "backend", s.artifacts.Name(), "entries", payload.EntryCount())
	return nil
}

// ImportVersion recreates the version row when absent and upserts every entry
// in one transaction; replaying the same payload changes nothing.
func (s *cacheStore) ImportVersion(ctx context.Context, kind types.Kind, payload *types.ExportPayload) (types.ImportResult, error) {
	if err := s.validatePayload(kind, payload); err != nil {
		return types.ImportResult{}, err
	}
	total := payload.TotalItems
	if total <= 0 {
		total = payload.EntryCount()
	}
	createdAt := payload.ExportedAt.UTC()
	if payload.ExportedAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	langs := make([]string, 0, len(payload.EntriesByLanguage))
	for lang := range payload.EntriesByLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	rows := make([]*types.CacheEntry, 0, payload.EntryCount())
	for _, lang := range langs {
		for _, ee := range payload.EntriesByLanguage[lang] {
			rows = append(rows, entryFromExport(kind, lang, payload, ee))
		}
	}

	err := dbctx.InTx(ctx, s.db, func(dbc dbctx.Context) error {
		existing, err := s.versions.Get(dbc, payload.Version)
		if err != nil {
			return err
		}
		if existing != nil && existing.Kind != kind {
			return fmt.Errorf("%w: version %s belongs to kind %s", ErrInvalidPayload, payload.Version, existing.Kind)
		}
		if existing == nil {
			if _, err := s.versions.CreateIfAbsent(dbc, &types.CacheVersion{
				Version:     payload.Version,
				Kind:        kind,
				Description: payload.Description,
				TotalItems:  total,
				Languages:   langs,
				CreatedAt:   createdAt,
			}); err != nil {
				return fmt.Errorf("create version: %w", err)
			}
		}
		for start := 0; start < len(rows); start += 200 {
			end := start + 200
			if end > len(rows) {
				end = len(rows)
			}
			if err := s.entries.Upsert(dbc, rows[start:end]); err != nil {
				return fmt.Errorf("upsert entries: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return types.ImportResult{}, err
	}
	s.log.Info("cache version imported", "kind", kind, "version", payload.Version, "entries", len(rows))
	return types.ImportResult{Version: payload.Version, TotalItems: total, Entries: len(rows)}, nil
}

func (s *cacheStore) validatePayload(kind types.Kind, p *types.ExportPayload) error {
	if p == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidPayload)
	}
	if p.Kind != "" && p.Kind != kind {
		return fmt.Errorf("%w: payload kind %s does not match %s", ErrInvalidPayload, p.Kind, kind)
	}
	for lang, list := range p.EntriesByLanguage {
		if len(s.languages) > 0 && !s.languages[lang] {
			return fmt.Errorf("%w: unsupported language %q", ErrInvalidPayload, lang)
		}
		for i, ee := range list {
			if strings.TrimSpace(ee.ItemID) == "" {
				return fmt.Errorf("%w: %s entry %d has no itemId", ErrInvalidPayload, lang, i)
			}
		}
	}
	return nil
}

// entryFromExport always files the entry under the payload's version.
func entryFromExport(kind types.Kind, lang string, p *types.ExportPayload, ee types.ExportEntry) *types.CacheEntry {
	created := ee.CreatedAt.UTC()
	if ee.CreatedAt.IsZero() {
		created = p.ExportedAt.UTC()
	}
	return &types.CacheEntry{
		Kind:      kind,
		ItemID:    ee.ItemID,
		Language:  lang,
		Version:   p.Version,
		Category:  ee.Category,
		Title:     ee.Title,
		Body:      ee.Body,
		CreatedAt: created,
	}
}
