package content

import (
	"time"

	"gorm.io/datatypes"
)

// CacheVersion is the metadata row for one batch run. TotalItems is the planned
// count, not the number of entries actually written.
type CacheVersion struct {
	Version     string                      `gorm:"column:version;primaryKey;size:96" json:"version"`
	Kind        Kind                        `gorm:"column:kind;size:32;not null;index" json:"kind"`
	Description string                      `gorm:"column:description" json:"description"`
	TotalItems  int                         `gorm:"column:total_items;not null;default:0" json:"total_items"`
	Languages   datatypes.JSONSlice[string] `gorm:"column:languages" json:"languages"`
	Options     datatypes.JSON              `gorm:"column:options" json:"options,omitempty"`
	CreatedAt   time.Time                   `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (CacheVersion) TableName() string { return "cache_version" }
