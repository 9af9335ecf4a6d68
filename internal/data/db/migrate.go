package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/checklist-advisor/internal/domain"
)

// AutoMigrateAll creates the content tables and the indexes gorm tags cannot
// express. Safe to run on every start.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return err
	}
	return EnsureContentIndexes(db)
}

// EnsureContentIndexes adds the composite indexes behind the read path and the
// per-version stats queries. The statements are valid on postgres and sqlite.
func EnsureContentIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		// Newest entry for an item/language across versions.
		{"idx_cache_entry_latest", `
			CREATE INDEX IF NOT EXISTS idx_cache_entry_latest
			ON cache_entry (kind, item_id, language, created_at DESC);`},
		// Stats and export scan one version of one kind.
		{"idx_cache_entry_kind_version", `
			CREATE INDEX IF NOT EXISTS idx_cache_entry_kind_version
			ON cache_entry (kind, version, language);`},
		{"idx_cache_version_kind_created", `
			CREATE INDEX IF NOT EXISTS idx_cache_version_kind_created
			ON cache_version (kind, created_at DESC);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
