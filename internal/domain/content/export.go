package content

import "time"

// ExportEntry and ExportPayload are the portable artifact format; field names
// are part of the file format.
type ExportEntry struct {
	ItemID    string    `json:"itemId"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Version   string    `json:"version"`
}

type ExportPayload struct {
	Version           string                   `json:"version"`
	Kind              Kind                     `json:"kind,omitempty"`
	Description       string                   `json:"description,omitempty"`
	ExportedAt        time.Time                `json:"exportedAt"`
	TotalItems        int                      `json:"totalItems"`
	EntriesByLanguage map[string][]ExportEntry `json:"entriesByLanguage"`
}

func (p ExportPayload) EntryCount() int {
	n := 0
	for _, entries := range p.EntriesByLanguage {
		n += len(entries)
	}
	return n
}

type ImportResult struct {
	Version    string `json:"version"`
	TotalItems int    `json:"total_items"`
	Entries    int    `json:"entries"`
}

type CacheStats struct {
	Version     string           `json:"version,omitempty"`
	Total       int64            `json:"total"`
	PerLanguage map[string]int64 `json:"per_language"`
	UniqueItems int64            `json:"unique_items"`
}

type VersionWithStats struct {
	CacheVersion
	Stats CacheStats `json:"stats"`
}
