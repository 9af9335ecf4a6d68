package repos

import (
	"github.com/yungbote/checklist-advisor/internal/data/repos/content"
)

type CacheEntryRepo = content.CacheEntryRepo
type CacheVersionRepo = content.CacheVersionRepo
type ChecklistItemRepo = content.ChecklistItemRepo

var (
	NewCacheEntryRepo    = content.NewCacheEntryRepo
	NewCacheVersionRepo  = content.NewCacheVersionRepo
	NewChecklistItemRepo = content.NewChecklistItemRepo
)
