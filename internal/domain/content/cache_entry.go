package content

import "time"

// CacheEntry is one generated artifact for an (item, language) under a version.
// Category and Title are copied from the item at generation time.
type CacheEntry struct {
	Kind      Kind      `gorm:"column:kind;primaryKey;size:32" json:"kind"`
	ItemID    string    `gorm:"column:item_id;primaryKey;size:128" json:"item_id"`
	Language  string    `gorm:"column:language;primaryKey;size:16" json:"language"`
	Version   string    `gorm:"column:version;primaryKey;size:96;index" json:"version"`
	Category  string    `gorm:"column:category" json:"category"`
	Title     string    `gorm:"column:title" json:"title"`
	Body      string    `gorm:"column:body;type:text" json:"body"`
	Model     string    `gorm:"column:model" json:"model,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (CacheEntry) TableName() string { return "cache_entry" }
