package content

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/dbctx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type CacheEntryRepo interface {
	Upsert(dbc dbctx.Context, entries []*types.CacheEntry) error
	Get(dbc dbctx.Context, kind types.Kind, itemID, language, version string) (*types.CacheEntry, error)
	GetLatest(dbc dbctx.Context, kind types.Kind, itemID, language string) (*types.CacheEntry, error)
	ListByVersion(dbc dbctx.Context, kind types.Kind, version string) ([]*types.CacheEntry, error)
	CountByVersion(dbc dbctx.Context, kind types.Kind, version string) (int64, error)
	DeleteByVersion(dbc dbctx.Context, kind types.Kind, version string) (int64, error)
	Stats(dbc dbctx.Context, kind types.Kind, version string) (types.CacheStats, error)
}

type cacheEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCacheEntryRepo(db *gorm.DB, baseLog *logger.Logger) CacheEntryRepo {
	return &cacheEntryRepo{
		db:  db,
		log: baseLog.With("repo", "CacheEntryRepo"),
	}
}

const upsertBatch = 200

// Upsert overwrites on the (kind, item_id, language, version) key. Large sets
// are written in batches inside one transaction.
func (r *cacheEntryRepo) Upsert(dbc dbctx.Context, entries []*types.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return dbc.InTx(r.db, func(dbc dbctx.Context) error {
		for start := 0; start < len(entries); start += upsertBatch {
			batch := entries[start:min(start+upsertBatch, len(entries))]
			err := dbc.DB(r.db).
				Clauses(clause.OnConflict{
					Columns: []clause.Column{
						{Name: "kind"},
						{Name: "item_id"},
						{Name: "language"},
						{Name: "version"},
					},
					DoUpdates: clause.AssignmentColumns([]string{
						"category",
						"title",
						"body",
						"model",
						"created_at",
						"updated_at",
					}),
				}).
				Create(&batch).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *cacheEntryRepo) Get(dbc dbctx.Context, kind types.Kind, itemID, language, version string) (*types.CacheEntry, error) {
	if itemID == "" || language == "" || version == "" {
		return nil, nil
	}
	var e types.CacheEntry
	res := dbc.DB(r.db).
		Where("kind = ? AND item_id = ? AND language = ? AND version = ?", kind, itemID, language, version).
		Limit(1).
		Find(&e)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &e, nil
}

// GetLatest returns the newest entry for the item/language across every version.
func (r *cacheEntryRepo) GetLatest(dbc dbctx.Context, kind types.Kind, itemID, language string) (*types.CacheEntry, error) {
	if itemID == "" || language == "" {
		return nil, nil
	}
	var e types.CacheEntry
	res := dbc.DB(r.db).
		Where("kind = ? AND item_id = ? AND language = ?", kind, itemID, language).
		Order("created_at DESC").
		Order("version DESC").
		Limit(1).
		Find(&e)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *cacheEntryRepo) ListByVersion(dbc dbctx.Context, kind types.Kind, version string) ([]*types.CacheEntry, error) {
	var out []*types.CacheEntry
	if version == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("kind = ? AND version = ?", kind, version).
		Order("language ASC").
		Order("created_at ASC").
		Order("item_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cacheEntryRepo) CountByVersion(dbc dbctx.Context, kind types.Kind, version string) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.CacheEntry{}).
		Where("kind = ? AND version = ?", kind, version).
		Count(&n).Error
	return n, err
}

func (r *cacheEntryRepo) DeleteByVersion(dbc dbctx.Context, kind types.Kind, version string) (int64, error) {
	if version == "" {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Where("kind = ? AND version = ?", kind, version).
		Delete(&types.CacheEntry{})
	return res.RowsAffected, res.Error
}

// Stats aggregates entry counts for a kind, scoped to one version when version is set.
func (r *cacheEntryRepo) Stats(dbc dbctx.Context, kind types.Kind, version string) (types.CacheStats, error) {
	out := types.CacheStats{Version: version, PerLanguage: map[string]int64{}}
	scope := func() *gorm.DB {
		q := dbc.DB(r.db).Model(&types.CacheEntry{}).Where("kind = ?", kind)
		if version != "" {
			q = q.Where("version = ?", version)
		}
		return q
	}

	if err := scope().Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := scope().Distinct("item_id").Count(&out.UniqueItems).Error; err != nil {
		return out, err
	}

	var rows []struct {
		Language string
		N        int64
	}
	if err := scope().
		Select("language, COUNT(*) AS n").
		Group("language").
		Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, row := range rows {
		out.PerLanguage[row.Language] = row.N
	}
	return out, nil
}
