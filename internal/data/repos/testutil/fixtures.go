package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/checklist-advisor/internal/domain"
)

func SeedItems(tb testing.TB, ctx context.Context, tx *gorm.DB, items ...*types.ChecklistItem) []*types.ChecklistItem {
	tb.Helper()
	if len(items) == 0 {
		return items
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		tb.Fatalf("seed items: %v", err)
	}
	return items
}

func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, kind types.Kind, version string, createdAt time.Time) *types.CacheVersion {
	tb.Helper()
	v := &types.CacheVersion{
		Version:   version,
		Kind:      kind,
		Languages: []string{"ja", "en"},
		CreatedAt: createdAt,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}

func SeedEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, kind types.Kind, version, itemID, lang, body string, createdAt time.Time) *types.CacheEntry {
	tb.Helper()
	e := &types.CacheEntry{
		Kind:      kind,
		ItemID:    itemID,
		Language:  lang,
		Version:   version,
		Category:  "cat",
		Title:     "title " + itemID,
		Body:      body,
		CreatedAt: createdAt,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed entry: %v", err)
	}
	return e
}
