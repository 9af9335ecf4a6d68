package content

import (
	"gorm.io/gorm"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/dbctx"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

// ChecklistItemRepo reads the host application's item table.
type ChecklistItemRepo interface {
	List(dbc dbctx.Context) ([]*types.ChecklistItem, error)
	GetByID(dbc dbctx.Context, id string) (*types.ChecklistItem, error)
}

type checklistItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChecklistItemRepo(db *gorm.DB, baseLog *logger.Logger) ChecklistItemRepo {
	return &checklistItemRepo{
		db:  db,
		log: baseLog.With("repo", "ChecklistItemRepo"),
	}
}

func (r *checklistItemRepo) List(dbc dbctx.Context) ([]*types.ChecklistItem, error) {
	var out []*types.ChecklistItem
	if err := dbc.DB(r.db).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *checklistItemRepo) GetByID(dbc dbctx.Context, id string) (*types.ChecklistItem, error) {
	if id == "" {
		return nil, nil
	}
	var it types.ChecklistItem
	res := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&it)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &it, nil
}
