package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/checklist-advisor/internal/data/repos"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type Repos struct {
	CacheEntry    repos.CacheEntryRepo
	CacheVersion  repos.CacheVersionRepo
	ChecklistItem repos.ChecklistItemRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CacheEntry:    repos.NewCacheEntryRepo(db, log),
		CacheVersion:  repos.NewCacheVersionRepo(db, log),
		ChecklistItem: repos.NewChecklistItemRepo(db, log),
	}
}
