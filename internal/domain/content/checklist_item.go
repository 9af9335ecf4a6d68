package content

import (
	"time"

	"gorm.io/datatypes"
)

// ChecklistItem is owned by the host application; this module only reads it.
type ChecklistItem struct {
	ID               string                      `gorm:"column:id;primaryKey;size:128" json:"id" yaml:"id"`
	Category         string                      `gorm:"column:category;index" json:"category" yaml:"category"`
	Title            string                      `gorm:"column:title" json:"title" yaml:"title"`
	Description      string                      `gorm:"column:description;type:text" json:"description" yaml:"description"`
	RequiredEvidence string                      `gorm:"column:required_evidence;type:text" json:"required_evidence" yaml:"required_evidence"`
	ImageURLs        datatypes.JSONSlice[string] `gorm:"column:image_urls" json:"image_urls,omitempty" yaml:"image_urls"`
	SortOrder        int                         `gorm:"column:sort_order;not null;default:0;index" json:"sort_order" yaml:"sort_order"`
	CreatedAt        time.Time                   `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time                   `json:"updated_at" yaml:"-"`
}

func (ChecklistItem) TableName() string { return "checklist_item" }

func (i ChecklistItem) HasImages() bool { return len(i.ImageURLs) > 0 }
