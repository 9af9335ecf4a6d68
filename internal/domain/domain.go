package domain

import (
	"github.com/yungbote/checklist-advisor/internal/domain/content"
)

type (
	Kind             = content.Kind
	CacheEntry       = content.CacheEntry
	CacheVersion     = content.CacheVersion
	ChecklistItem    = content.ChecklistItem
	RunStatus        = content.RunStatus
	ProgressState    = content.ProgressState
	ProgressUpdate   = content.ProgressUpdate
	ProgressError    = content.ProgressError
	ExportEntry      = content.ExportEntry
	ExportPayload    = content.ExportPayload
	ImportResult     = content.ImportResult
	CacheStats       = content.CacheStats
	VersionWithStats = content.VersionWithStats
)

const (
	KindAdvice          = content.KindAdvice
	KindVirtualEvidence = content.KindVirtualEvidence

	StatusIdle      = content.StatusIdle
	StatusRunning   = content.StatusRunning
	StatusCompleted = content.StatusCompleted
	StatusFailed    = content.StatusFailed
)

var (
	Kinds        = content.Kinds
	ParseKind    = content.ParseKind
	NewVersionID = content.NewVersionID
	IdleProgress = content.IdleProgress
)

// Models lists every table this module migrates.
func Models() []any {
	return []any{
		&content.CacheVersion{},
		&content.CacheEntry{},
		&content.ChecklistItem{},
	}
}
