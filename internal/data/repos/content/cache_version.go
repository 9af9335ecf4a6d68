package content

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/dbctx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type CacheVersionRepo interface {
	Upsert(dbc dbctx.Context, v *types.CacheVersion) error
	CreateIfAbsent(dbc dbctx.Context, v *types.CacheVersion) (bool, error)
	Get(dbc dbctx.Context, version string) (*types.CacheVersion, error)
	Exists(dbc dbctx.Context, version string) (bool, error)
	List(dbc dbctx.Context, kind types.Kind) ([]*types.CacheVersion, error)
	Latest(dbc dbctx.Context, kind types.Kind) (*types.CacheVersion, error)
	Delete(dbc dbctx.Context, version string) (int64, error)
}

type cacheVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCacheVersionRepo(db *gorm.DB, baseLog *logger.Logger) CacheVersionRepo {
	return &cacheVersionRepo{
		db:  db,
		log: baseLog.With("repo", "CacheVersionRepo"),
	}
}

func (r *cacheVersionRepo) Upsert(dbc dbctx.Context, v *types.CacheVersion) error {
	if v == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "total_items", "languages", "options"}),
		}).
		Create(v).Error
}

// CreateIfAbsent inserts v unless the version already exists; it reports whether a row was written.
func (r *cacheVersionRepo) CreateIfAbsent(dbc dbctx.Context, v *types.CacheVersion) (bool, error) {
	if v == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version"}},
			DoNothing: true,
		}).
		Create(v)
	return res.RowsAffected > 0, res.Error
}

func (r *cacheVersionRepo) Get(dbc dbctx.Context, version string) (*types.CacheVersion, error) {
	if version == "" {
		return nil, nil
	}
	var v types.CacheVersion
	res := dbc.DB(r.db).Where("version = ?", version).Limit(1).Find(&v)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *cacheVersionRepo) Exists(dbc dbctx.Context, version string) (bool, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.CacheVersion{}).Where("version = ?", version).Count(&n).Error
	return n > 0, err
}

// List returns a kind's versions newest first.
func (r *cacheVersionRepo) List(dbc dbctx.Context, kind types.Kind) ([]*types.CacheVersion, error) {
	var out []*types.CacheVersion
	if err := dbc.DB(r.db).
		Where("kind = ?", kind).
		Order("created_at DESC").
		Order("version DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cacheVersionRepo) Latest(dbc dbctx.Context, kind types.Kind) (*types.CacheVersion, error) {
	var v types.CacheVersion
	res := dbc.DB(r.db).
		Where("kind = ?", kind).
		Order("created_at DESC").
		Order("version DESC").
		Limit(1).
		Find(&v)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *cacheVersionRepo) Delete(dbc dbctx.Context, version string) (int64, error) {
	if version == "" {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("version = ?", version).Delete(&types.CacheVersion{})
	return res.RowsAffected, res.Error
}
